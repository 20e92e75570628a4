package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/crowdframe/internal/model"
)

// Auditor replays the gold check of one stored session snapshot
type Auditor interface {
	AuditFile(ctx context.Context, path string) (*model.AuditReport, error)
}

// AuditJob represents a snapshot audit job
type AuditJob struct {
	Path    string
	Auditor Auditor
}

// Execute executes the audit job
func (j *AuditJob) Execute(ctx context.Context) Result {
	report, err := j.Auditor.AuditFile(ctx, j.Path)
	if err != nil {
		return &AuditResult{Path: j.Path, Error: err}
	}
	return &AuditResult{Path: j.Path, Report: report}
}

// AuditResult represents the result of an audit job
type AuditResult struct {
	Path   string
	Report *model.AuditReport
	Error  error
}

// GetError returns the error from the audit result
func (r *AuditResult) GetError() error {
	return r.Error
}

// BatchProcessor audits multiple snapshots concurrently
type BatchProcessor struct {
	auditor     Auditor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(auditor Auditor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		auditor:     auditor,
		concurrency: concurrency,
	}
}

// ProcessPaths audits snapshot files concurrently. Results are sorted by path.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*AuditResult {
	if len(paths) == 0 {
		return []*AuditResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	collected := make(chan []*AuditResult)
	go func() {
		var out []*AuditResult
		for result := range pool.Results() {
			out = append(out, result.(*AuditResult))
		}
		collected <- out
	}()

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		pool.Submit(&AuditJob{Path: path, Auditor: b.auditor})
	}
	pool.Close()

	results := <-collected
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results
}

// ProcessDir audits every *.json snapshot in a directory
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*AuditResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return b.ProcessPaths(ctx, paths), nil
}

// ProcessFile reads snapshot paths from a file and audits them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AuditResult, error) {
	paths, err := ReadPathsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads paths from a file (one per line)
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
