package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"match-collector/internal/collector"
	"match-collector/internal/features"
	"match-collector/internal/logger"
)

// TableWriter writes the CSV tables of a unit:
// {label}_matches.csv, {label}_timeline.csv and optionally {label}_timeline_wide.csv
type TableWriter struct {
	dir  string
	wide bool
	log  *logger.Entry
}

func NewTableWriter(dir string, wide bool) (*TableWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &TableWriter{dir: dir, wide: wide, log: logger.Component("tables")}, nil
}

func (w *TableWriter) Name() string {
	return "csv"
}

// WriteUnit implements collector.Sink
func (w *TableWriter) WriteUnit(ctx context.Context, res *collector.UnitResult) error {
	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows, r.Record())
	}
	if err := w.writeTable(res.Label+"_matches.csv", features.RowHeader, rows); err != nil {
		return err
	}

	long := make([][]string, 0, res.FeatureRows())
	maxMinute := 0
	for _, mf := range res.Features {
		for _, fr := range mf.Rows {
			long = append(long, fr.Record())
		}
		if mf.MaxMinute > maxMinute {
			maxMinute = mf.MaxMinute
		}
	}
	if err := w.writeTable(res.Label+"_timeline.csv", features.FeatureHeader, long); err != nil {
		return err
	}

	if w.wide {
		wide := make([][]string, 0, len(res.Features))
		for _, mf := range res.Features {
			wide = append(wide, mf.Wide(maxMinute))
		}
		if err := w.writeTable(res.Label+"_timeline_wide.csv", features.WideHeader(maxMinute), wide); err != nil {
			return err
		}
	}

	w.log.WithFields(logger.Fields{
		"unit":         res.Label,
		"match_rows":   len(rows),
		"feature_rows": len(long),
	}).Info("tables written")
	return nil
}

func (w *TableWriter) writeTable(name string, header []string, records [][]string) error {
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header of %s: %w", name, err)
	}
	if err := cw.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
