package util

import (
	"fmt"
	"log/slog"

	"github.com/grafana/pyroscope-go"
)

// StartProfiler pushes CPU and allocation profiles of the process to the
// Pyroscope server at serverURL. The returned function stops profiling.
func StartProfiler(serverURL, app string, logger *slog.Logger) (stop func() error, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: app,
		ServerAddress:   serverURL,
		Logger:          profileLogger{logger.With("component", "pyroscope")},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("starting profiler: %w", err)
	}
	return profiler.Stop, nil
}

// profileLogger adapts slog to the profiler's printf-style logger.
type profileLogger struct {
	log *slog.Logger
}

func (l profileLogger) Infof(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l profileLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l profileLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}
