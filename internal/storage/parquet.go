package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"match-collector/internal/collector"
	"match-collector/internal/features"
	"match-collector/internal/logger"
)

// featureRecord is the parquet schema of the timeline table
type featureRecord struct {
	RunID          string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Unit           string `parquet:"name=unit, type=BYTE_ARRAY, convertedtype=UTF8"`
	MatchID        string `parquet:"name=match_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Minute         int32  `parquet:"name=minute, type=INT32"`
	GoldDiff       int32  `parquet:"name=gold_diff, type=INT32"`
	KillDiff       int32  `parquet:"name=kill_diff, type=INT32"`
	TotalKillDiff  int32  `parquet:"name=total_kill_diff, type=INT32"`
	DragonDiff     int32  `parquet:"name=dragon_diff, type=INT32"`
	ElderDiff      int32  `parquet:"name=elder_diff, type=INT32"`
	HeraldDiff     int32  `parquet:"name=herald_diff, type=INT32"`
	BaronDiff      int32  `parquet:"name=baron_diff, type=INT32"`
	AtakhanDiff    int32  `parquet:"name=atakhan_diff, type=INT32"`
	GrubDiff       int32  `parquet:"name=grub_diff, type=INT32"`
	OuterTowerDiff int32  `parquet:"name=outer_tower_diff, type=INT32"`
	InnerTowerDiff int32  `parquet:"name=inner_tower_diff, type=INT32"`
	BaseTowerDiff  int32  `parquet:"name=base_tower_diff, type=INT32"`
	NexusTowerDiff int32  `parquet:"name=nexus_tower_diff, type=INT32"`
	InhibitorDiff  int32  `parquet:"name=inhibitor_diff, type=INT32"`
}

// participantRecord is the parquet schema of the matches table
type participantRecord struct {
	RunID            string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Unit             string  `parquet:"name=unit, type=BYTE_ARRAY, convertedtype=UTF8"`
	MatchID          string  `parquet:"name=match_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	GameDuration     int64   `parquet:"name=game_duration, type=INT64"`
	PUUID            string  `parquet:"name=puuid, type=BYTE_ARRAY, convertedtype=UTF8"`
	TeamID           int32   `parquet:"name=team_id, type=INT32"`
	Win              bool    `parquet:"name=win, type=BOOLEAN"`
	Lane             string  `parquet:"name=lane, type=BYTE_ARRAY, convertedtype=UTF8"`
	Champion         string  `parquet:"name=champion, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpposingChampion *string `parquet:"name=enemy_lane_champion, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// ParquetSink writes snappy-compressed parquet copies of a unit's tables to
// dir and, when an uploader is set, pushes them to object storage.
type ParquetSink struct {
	dir      string
	uploader *S3Uploader
	log      *logger.Entry
}

func NewParquetSink(dir string, uploader *S3Uploader) (*ParquetSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &ParquetSink{dir: dir, uploader: uploader, log: logger.Component("parquet")}, nil
}

func (p *ParquetSink) Name() string {
	return "parquet"
}

// WriteUnit implements collector.Sink
func (p *ParquetSink) WriteUnit(ctx context.Context, res *collector.UnitResult) error {
	timelineRecs := make([]featureRecord, 0, res.FeatureRows())
	for _, mf := range res.Features {
		for _, r := range mf.Rows {
			timelineRecs = append(timelineRecs, toFeatureRecord(res.RunID, res.Label, r))
		}
	}
	matchRecs := make([]participantRecord, 0, len(res.Rows))
	for _, r := range res.Rows {
		matchRecs = append(matchRecs, participantRecord{
			RunID:            res.RunID,
			Unit:             res.Label,
			MatchID:          r.MatchID,
			GameDuration:     r.GameDuration,
			PUUID:            r.PUUID,
			TeamID:           int32(r.TeamID),
			Win:              r.Win,
			Lane:             r.Role,
			Champion:         r.Champion,
			OpposingChampion: r.OpposingChampion,
		})
	}

	files := []struct {
		name  string
		write func(path string) error
	}{
		{res.Label + "_timeline.parquet", func(path string) error {
			return writeParquet(path, new(featureRecord), len(timelineRecs), func(i int) interface{} { return timelineRecs[i] })
		}},
		{res.Label + "_matches.parquet", func(path string) error {
			return writeParquet(path, new(participantRecord), len(matchRecs), func(i int) interface{} { return matchRecs[i] })
		}},
	}

	for _, f := range files {
		path := filepath.Join(p.dir, f.name)
		if err := f.write(path); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
		if p.uploader == nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := p.uploader.Upload(ctx, p.uploader.Key(res.RunID, f.name), data, "application/vnd.apache.parquet"); err != nil {
			return err
		}
	}

	p.log.WithFields(logger.Fields{
		"unit":         res.Label,
		"match_rows":   len(matchRecs),
		"feature_rows": len(timelineRecs),
	}).Info("parquet files written")
	return nil
}

func toFeatureRecord(runID, unit string, r features.FeatureRow) featureRecord {
	return featureRecord{
		RunID:          runID,
		Unit:           unit,
		MatchID:        r.MatchID,
		Minute:         int32(r.Minute),
		GoldDiff:       int32(r.GoldDiff),
		KillDiff:       int32(r.KillDiff),
		TotalKillDiff:  int32(r.TotalKillDiff),
		DragonDiff:     int32(r.DragonDiff),
		ElderDiff:      int32(r.ElderDiff),
		HeraldDiff:     int32(r.HeraldDiff),
		BaronDiff:      int32(r.BaronDiff),
		AtakhanDiff:    int32(r.AtakhanDiff),
		GrubDiff:       int32(r.GrubDiff),
		OuterTowerDiff: int32(r.OuterTowerDiff),
		InnerTowerDiff: int32(r.InnerTowerDiff),
		BaseTowerDiff:  int32(r.BaseTowerDiff),
		NexusTowerDiff: int32(r.NexusTowerDiff),
		InhibitorDiff:  int32(r.InhibitorDiff),
	}
}

func writeParquet(path string, schema interface{}, n int, rec func(i int) interface{}) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(fw, schema, 1)
	if err != nil {
		fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := 0; i < n; i++ {
		if err := pw.Write(rec(i)); err != nil {
			fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}
