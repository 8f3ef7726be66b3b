package main

import (
	"context"
	"fmt"
	"io"

	"match-collector/internal/collector"
	"match-collector/internal/config"
	"match-collector/internal/db"
	"match-collector/internal/logger"
	"match-collector/internal/storage"
)

type sinkSet struct {
	sinks   []collector.Sink
	closers []func()
}

func (s *sinkSet) names() []string {
	out := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		out[i] = sink.Name()
	}
	return out
}

// Close releases database handles in reverse order of opening
func (s *sinkSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// tableCounter is a sink that can report its table totals
type tableCounter interface {
	Counts(ctx context.Context) (map[string]int, error)
}

// writeCounts prints the row totals of every database sink that reports them
func (s *sinkSet) writeCounts(ctx context.Context, w io.Writer) {
	for _, sink := range s.sinks {
		tc, ok := sink.(tableCounter)
		if !ok {
			continue
		}
		counts, err := tc.Counts(ctx)
		if err != nil {
			logger.Component("main").WithError(err).WithFields(logger.Fields{"sink": sink.Name()}).Warn("could not count rows")
			continue
		}
		fmt.Fprintf(w, "%s totals: matches=%d participants=%d timeline_features=%d\n",
			sink.Name(), counts["matches"], counts["participants"], counts["timeline_features"])
	}
}

// openSinks builds the configured outputs. On error everything already
// opened is closed.
func openSinks(ctx context.Context, cfg *config.Config) (_ *sinkSet, err error) {
	set := &sinkSet{}
	defer func() {
		if err != nil {
			set.Close()
		}
	}()
	log := logger.Component("main")

	for _, name := range cfg.Output.Sinks {
		switch name {
		case config.SinkCSV:
			w, err := storage.NewTableWriter(cfg.Output.ProcessedDir, cfg.Output.Wide)
			if err != nil {
				return nil, err
			}
			set.sinks = append(set.sinks, w)

		case config.SinkParquet:
			var uploader *storage.S3Uploader
			if cfg.S3.Bucket != "" {
				uploader, err = storage.NewS3Uploader(ctx, cfg.S3)
				if err != nil {
					return nil, err
				}
			}
			p, err := storage.NewParquetSink(cfg.Output.ProcessedDir, uploader)
			if err != nil {
				return nil, err
			}
			set.sinks = append(set.sinks, p)

		case config.SinkPostgres:
			pg, err := db.New(ctx, cfg.Postgres.DSN)
			if err != nil {
				return nil, err
			}
			set.closers = append(set.closers, pg.Close)
			if err := pg.CreateTables(ctx); err != nil {
				return nil, fmt.Errorf("postgres schema: %w", err)
			}
			set.sinks = append(set.sinks, pg)

		case config.SinkSQLite, config.SinkTurso:
			var store *db.SQLStore
			if name == config.SinkSQLite {
				store, err = db.OpenSQLite(cfg.SQLite.Path)
			} else {
				store, err = db.OpenTurso(cfg.Turso.URL, cfg.Turso.AuthToken)
			}
			if err != nil {
				return nil, err
			}
			set.closers = append(set.closers, func() {
				if err := store.Close(); err != nil {
					log.WithError(err).Warn("error closing " + store.Name())
				}
			})
			if err := store.CreateTables(ctx); err != nil {
				return nil, fmt.Errorf("%s schema: %w", name, err)
			}
			set.sinks = append(set.sinks, store)
		}
	}
	return set, nil
}
