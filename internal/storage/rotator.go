package storage

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"match-collector/internal/logger"
	"match-collector/internal/riot"
)

const (
	// Rotation triggers
	MaxMatchesPerFile = 1000
	MaxFileAge        = 1 * time.Hour

	archivePrefix = "raw_matches_"
)

// RawRecord is one archived match with its timeline
type RawRecord struct {
	MatchID    string         `json:"matchId"`
	ArchivedAt int64          `json:"archivedAt"`
	Match      *riot.Match    `json:"match"`
	Timeline   *riot.Timeline `json:"timeline"`
}

// FileRotator appends raw records to JSONL files. Active files live in hot/,
// closed files move to warm/, and CompressWarm gzips warm files into cold/.
type FileRotator struct {
	mu sync.Mutex

	hotDir  string
	warmDir string
	coldDir string

	maxMatches int
	maxAge     time.Duration

	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	matchCount    int
	fileOpenedAt  time.Time

	log *logger.Entry
}

// NewFileRotator creates hot/warm/cold under baseDir and opens the first file
func NewFileRotator(baseDir string) (*FileRotator, error) {
	r := &FileRotator{
		hotDir:     filepath.Join(baseDir, "hot"),
		warmDir:    filepath.Join(baseDir, "warm"),
		coldDir:    filepath.Join(baseDir, "cold"),
		maxMatches: MaxMatchesPerFile,
		maxAge:     MaxFileAge,
		log:        logger.Component("rotator"),
	}

	for _, dir := range []string{r.hotDir, r.warmDir, r.coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetColdDir moves cold storage elsewhere (e.g. a larger disk)
func (r *FileRotator) SetColdDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create cold directory: %w", err)
	}
	r.mu.Lock()
	r.coldDir = path
	r.mu.Unlock()
	return nil
}

// SetMaxMatches changes the per-file rotation threshold
func (r *FileRotator) SetMaxMatches(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > 0 {
		r.maxMatches = n
	}
}

// Archive implements collector.Archiver
func (r *FileRotator) Archive(match *riot.Match, timeline *riot.Timeline) error {
	if match == nil {
		return fmt.Errorf("archive: nil match")
	}
	rec := RawRecord{
		MatchID:    match.MatchID(),
		ArchivedAt: time.Now().UnixMilli(),
		Match:      match,
		Timeline:   timeline,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := r.currentWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	r.matchCount++

	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

func (r *FileRotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.matchCount >= r.maxMatches {
		return true
	}
	return time.Since(r.fileOpenedAt) >= r.maxAge
}

// rotate closes the current file into warm/ and opens a new hot file
func (r *FileRotator) rotate() error {
	if err := r.closeCurrent(); err != nil {
		return err
	}

	filename := fmt.Sprintf("%s%s.jsonl", archivePrefix, time.Now().Format("2006-01-02_15-04-05.000000"))
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024)
	r.matchCount = 0
	r.fileOpenedAt = time.Now()

	r.log.WithFields(logger.Fields{"file": filename}).Debug("opened archive file")
	return nil
}

func (r *FileRotator) closeCurrent() error {
	if r.currentFile == nil {
		return nil
	}
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	r.currentFile = nil

	if r.matchCount == 0 {
		return os.Remove(r.currentPath)
	}

	warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	r.log.WithFields(logger.Fields{"file": filepath.Base(warmPath), "matches": r.matchCount}).Info("moved archive file to warm")
	return nil
}

// Close flushes the current file and moves it to warm/ (empty files are removed)
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCurrent()
}

// Stats returns the match count and name of the active file
func (r *FileRotator) Stats() (matchesInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchCount, filepath.Base(r.currentPath)
}

// CompressWarm gzips every warm file into cold storage
func (r *FileRotator) CompressWarm() (int, error) {
	r.mu.Lock()
	warmDir, coldDir := r.warmDir, r.coldDir
	r.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(warmDir, archivePrefix+"*.jsonl"))
	if err != nil {
		return 0, err
	}
	for i, p := range paths {
		if err := CompressToCold(p, coldDir); err != nil {
			return i, fmt.Errorf("compress %s: %w", filepath.Base(p), err)
		}
	}
	return len(paths), nil
}

// CompressToCold gzips a warm file into coldDir and removes the original
func CompressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}

	return os.Remove(warmPath)
}

// ArchiveFiles lists archived files under baseDir (warm then cold, each sorted by name)
func ArchiveFiles(baseDir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{
		filepath.Join(baseDir, "warm", archivePrefix+"*.jsonl"),
		filepath.Join(baseDir, "cold", archivePrefix+"*.jsonl.gz"),
	} {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		sort.Strings(paths)
		out = append(out, paths...)
	}
	return out, nil
}

// ReadArchive decodes every record of a .jsonl or .jsonl.gz file.
// Undecodable lines are skipped and counted in bad.
func ReadArchive(path string, fn func(*RawRecord) error) (bad int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		rd = gz
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec RawRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Match == nil {
			bad++
			continue
		}
		if err := fn(&rec); err != nil {
			return bad, err
		}
	}
	return bad, scanner.Err()
}
