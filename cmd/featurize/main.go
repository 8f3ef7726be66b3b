package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"match-collector/internal/collector"
	"match-collector/internal/config"
	"match-collector/internal/features"
	"match-collector/internal/logger"
	"match-collector/internal/riot"
	"match-collector/internal/storage"
)

// Rebuilds the tabular outputs from the raw archive written by the collector,
// without touching the upstream API.
func main() {
	config.LoadEnv()

	configPath := flag.String("config", "", "YAML config file (optional)")
	archiveDir := flag.String("archive", "", "Archive directory (defaults to output.archive_dir)")
	outDir := flag.String("out", "", "Output directory (defaults to output.processed_dir)")
	label := flag.String("label", "archive", "Table name prefix")
	sinks := flag.String("sinks", "csv", "Comma separated outputs: csv, parquet")
	wide := flag.Bool("wide", false, "Also write the wide timeline table")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *archiveDir == "" {
		*archiveDir = cfg.Output.ArchiveDir
	}
	if *outDir == "" {
		*outDir = cfg.Output.ProcessedDir
	}

	if err := run(cfg, *archiveDir, *outDir, *label, config.ParseSinks(*sinks), *wide); err != nil {
		logger.Component("featurize").WithError(err).Error("featurize failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, archiveDir, outDir, label string, sinkNames []string, wide bool) error {
	log := logger.Component("featurize")
	ctx := context.Background()

	var sinks []collector.Sink
	for _, name := range sinkNames {
		switch name {
		case config.SinkCSV:
			w, err := storage.NewTableWriter(outDir, wide)
			if err != nil {
				return err
			}
			sinks = append(sinks, w)
		case config.SinkParquet:
			var uploader *storage.S3Uploader
			if cfg.S3.Bucket != "" {
				u, err := storage.NewS3Uploader(ctx, cfg.S3)
				if err != nil {
					return err
				}
				uploader = u
			}
			p, err := storage.NewParquetSink(outDir, uploader)
			if err != nil {
				return err
			}
			sinks = append(sinks, p)
		default:
			return fmt.Errorf("sink %q is not supported offline: %w", name, riot.ErrConfiguration)
		}
	}

	files, err := storage.ArchiveFiles(archiveDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no archive files under %s: %w", archiveDir, riot.ErrConfiguration)
	}
	fmt.Printf("Found %d archive files in %s\n", len(files), archiveDir)

	start := time.Now()
	res := &collector.UnitResult{RunID: uuid.NewString(), Label: label}
	seen := make(map[string]struct{})
	badLines := 0

	for i, path := range files {
		bad, err := storage.ReadArchive(path, func(rec *storage.RawRecord) error {
			id := rec.Match.MatchID()
			if _, dup := seen[id]; dup {
				res.Duplicates++
				return nil
			}
			seen[id] = struct{}{}
			res.Fetched++

			rows := features.ExtractRows(rec.Match)
			if rows == nil {
				res.Skipped++
				return nil
			}
			res.Rows = append(res.Rows, rows...)

			mf, err := features.Featurize(rec.Match, rec.Timeline)
			if err != nil {
				if !errors.Is(err, riot.ErrMalformedDocument) {
					return err
				}
				res.Malformed++
				return nil
			}
			res.Features = append(res.Features, mf)
			return nil
		})
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		badLines += bad
		fmt.Printf("  [Archive] %d/%d %s\n", i+1, len(files), filepath.Base(path))
	}
	res.Duration = time.Since(start)

	for _, sink := range sinks {
		if err := sink.WriteUnit(ctx, res); err != nil {
			return fmt.Errorf("%s sink: %w", sink.Name(), err)
		}
	}

	log.WithFields(logger.Fields{
		"matches":      res.Fetched,
		"duplicates":   res.Duplicates,
		"skipped":      res.Skipped,
		"malformed":    res.Malformed,
		"bad_lines":    badLines,
		"match_rows":   len(res.Rows),
		"feature_rows": res.FeatureRows(),
	}).Info("archive featurized")

	fmt.Printf("\n=== Featurize Complete ===\n")
	fmt.Printf("Matches: %d (%d duplicates, %d not ranked solo, %d unusable timelines, %d bad lines)\n",
		res.Fetched, res.Duplicates, res.Skipped, res.Malformed, badLines)
	fmt.Printf("Match rows: %d\n", len(res.Rows))
	fmt.Printf("Timeline rows: %d\n", res.FeatureRows())
	fmt.Printf("Output: %s\n", outDir)
	return nil
}
