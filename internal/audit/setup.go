package audit

import (
	"context"
	"fmt"

	"credit-risk-engine/internal/common/config"
	"credit-risk-engine/internal/common/database"
	"credit-risk-engine/internal/common/logger"
)

// Setup connects the sinks listed in cfg.Audit.Sinks and starts a Recorder.
// It returns a nil Recorder when auditing is disabled. The cleanup function
// closes the database clients and must run after Recorder.Close.
func Setup(ctx context.Context, cfg *config.Config, log logger.Logger) (*Recorder, func(), error) {
	if !cfg.Audit.Enabled {
		return nil, func() {}, nil
	}

	var (
		sinks   []Sink
		closers []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	for _, name := range cfg.Audit.Sinks {
		switch name {
		case config.SinkPostgres:
			client, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, client.Close)
			if err := client.Ping(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("postgres ping failed: %w", err)
			}
			sink, err := NewPostgresSink(client, cfg.Audit.Table)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			if err := sink.EnsureTable(ctx); err != nil {
				cleanup()
				return nil, nil, err
			}
			sinks = append(sinks, sink)

		case config.SinkRedis:
			client, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, client.Close)
			if err := client.Ping(ctx); err != nil {
				cleanup()
				return nil, nil, err
			}
			sinks = append(sinks, NewRedisStreamSink(client, cfg.Audit.Stream, cfg.Audit.StreamMaxLen))

		default:
			cleanup()
			return nil, nil, fmt.Errorf("unknown audit sink %q", name)
		}
	}

	log.Info("Audit trail enabled", map[string]interface{}{
		"sinks":       cfg.Audit.Sinks,
		"buffer_size": cfg.Audit.BufferSize,
	})

	recorder := NewRecorder(sinks, cfg.Audit.BufferSize, config.GetDuration(cfg.Audit.WriteTimeout), log)
	return recorder, cleanup, nil
}
