package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bdougie/scxmask/internal/models"
)

const batchSize = 256 // Number of results buffered before a write

// ResultsFile is the name of the JSON report inside a clip's results directory
const ResultsFile = "mask_results.json"

// Storage defines the interface for recording rendered mask frames
type Storage interface {
	// AddResult records a single rendered frame
	AddResult(ctx context.Context, result models.MaskResult) error

	// Flush ensures all pending results are saved
	Flush() error
}

// FileStorage writes mask results to a JSON report, sorted by frame
type FileStorage struct {
	results []models.MaskResult
	mu      sync.Mutex
	path    string
}

// NewFileStorage creates a report writer at outputDir/clipName/mask_results.json.
// An existing report is replaced on the first flush.
func NewFileStorage(outputDir, clipName string) *FileStorage {
	return &FileStorage{
		results: []models.MaskResult{},
		path:    filepath.Join(outputDir, clipName, ResultsFile),
	}
}

// Path returns the report location
func (s *FileStorage) Path() string {
	return s.path
}

// AddResult adds a result to the batch and flushes if the batch is full
func (s *FileStorage) AddResult(ctx context.Context, result models.MaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)

	if len(s.results)%batchSize == 0 {
		return s.flush()
	}
	return nil
}

// Flush writes all results collected so far
func (s *FileStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *FileStorage) flush() error {
	sort.Slice(s.results, func(i, j int) bool {
		return s.results[i].Frame < s.results[j].Frame
	})

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for results: %w", err)
	}

	// write through a temp file and rename into place
	tmp, err := os.CreateTemp(dir, ResultsFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.results); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// LoadResults reads a report written by FileStorage
func LoadResults(path string) ([]models.MaskResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	var results []models.MaskResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return results, nil
}

// Discard drops every result
type Discard struct{}

func (Discard) AddResult(context.Context, models.MaskResult) error { return nil }
func (Discard) Flush() error { return nil }
