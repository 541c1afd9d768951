// Package api is the request gateway of swift-trader: a gin HTTP API and a
// gRPC service, both in front of the backtest service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/gdtan02/swift-trader/internal/config"
)

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr        string
	grpcAddr        string
	shutdownTimeout time.Duration

	engine *gin.Engine
	http   *http.Server
	grpc   *grpc.Server
	log    *slog.Logger
}

// NewServer creates a new Server configured from cfg and backed by svc.
func NewServer(cfg config.Server, svc Backtester, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "api")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Server{
		httpAddr:        cfg.HTTPAddr(),
		grpcAddr:        cfg.GRPCAddr(),
		shutdownTimeout: timeout,
		engine:          engine,
		http: &http.Server{
			Addr:              cfg.HTTPAddr(),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpc: grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log))),
		log:  log,
	}

	s.setupRoutes(NewHandler(svc))
	NewGRPCService(svc, logger).RegisterGRPC(s.grpc)
	return s
}

// setupRoutes registers the HTTP routes.
func (s *Server) setupRoutes(h *Handler) {
	v1 := s.engine.Group("/api/v1")
	{
		bt := v1.Group("/backtest")
		bt.POST("/simulate-trade", h.SimulateTrade)
		bt.POST("/sweep", h.Sweep)
		bt.GET("/runs", h.ListRuns)
		bt.GET("/runs/:id", h.GetRun)

		v1.GET("/strategies", h.Strategies)
	}
	s.engine.GET("/health", h.Health)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	grpcLn, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve serves HTTP on httpLn and gRPC on grpcLn until ctx is done, then
// shuts both down.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http listening", "addr", httpLn.Addr().String())
		if err := s.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info("grpc listening", "addr", grpcLn.Addr().String())
		if err := s.grpc.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers. gRPC
// calls still running when ctx expires are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	err := s.http.Shutdown(ctx)

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
		<-stopped
	}
	s.log.Info("api stopped")
	return err
}

// requestLogger logs one line per HTTP request.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.Last().Error())
		}
		log.Info("http request", attrs...)
	}
}

// unaryLogger logs one line per gRPC call.
func unaryLogger(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "latency", time.Since(start)}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		log.Info("grpc call", attrs...)
		return resp, err
	}
}
