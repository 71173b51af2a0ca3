// Package extraction shells out to the external document parser. The parser
// is a separate program invoked as
//
//	<command> <file_path> <file_format> <test_type_id> <output_file>
//
// and communicates through the output file rather than stdout, so the runner
// polls for the file instead of reading pipes.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/apperr"
)

// ErrTimeout marks extractions that ran out of time rather than failing
// outright. It still satisfies errors.Is(err, apperr.ErrExternal).
var ErrTimeout = fmt.Errorf("parser timed out: %w", apperr.ErrExternal)

// Config controls how the parser process is launched and awaited.
type Config struct {
	Command      string
	WorkDir      string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Output is the JSON document the parser writes to its output file.
type Output struct {
	Status           string          `json:"status"`
	ExtractionMethod string          `json:"extraction_method"`
	Timestamp        string          `json:"timestamp"`
	InputFile        string          `json:"input_file"`
	TestTypeID       string          `json:"test_type_id"`
	Data             json.RawMessage `json:"data"`
	ErrorMessage     string          `json:"error_message"`
}

// Runner launches one parser process per extraction request.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
}

func NewRunner(cfg Config, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Extract runs the parser against the given document and returns the
// extracted data plus the extraction method the parser reported. Failures
// (spawn error, timeout, parser-reported error, unreadable output) are
// wrapped in apperr.ErrExternal; the caller decides whether to fall back.
func (r *Runner) Extract(ctx context.Context, filePath, fileFormat string, testTypeID int64) (json.RawMessage, string, error) {
	if err := os.MkdirAll(r.cfg.WorkDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create extraction work dir: %w", err)
	}
	outputPath := filepath.Join(r.cfg.WorkDir, "extract-"+uuid.New().String()+".json")
	defer os.Remove(outputPath)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.Command,
		filePath, fileFormat, strconv.FormatInt(testTypeID, 10), outputPath)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("start parser %q: %w", r.cfg.Command, apperr.ErrExternal)
	}

	// Reap the process in the background; completion is signalled by the
	// output file, not the exit code.
	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	out, err := r.awaitOutput(ctx, outputPath)
	if err != nil {
		// Ensure the process is gone before returning.
		cancel()
		<-waitErr
		return nil, "", err
	}
	<-waitErr

	r.logger.Debug().
		Str("file", filePath).
		Str("format", fileFormat).
		Int64("test_type_id", testTypeID).
		Str("method", out.ExtractionMethod).
		Dur("elapsed", time.Since(start)).
		Msg("parser finished")

	if out.Status != "success" {
		return nil, "", fmt.Errorf("parser reported %q: %s: %w", out.Status, out.ErrorMessage, apperr.ErrExternal)
	}
	if len(out.Data) == 0 {
		return nil, "", fmt.Errorf("parser output has no data: %w", apperr.ErrExternal)
	}
	return out.Data, out.ExtractionMethod, nil
}

// awaitOutput polls for the parser's output file until it contains a complete
// JSON document or the context expires. A file that exists but does not parse
// yet is treated as still being written.
func (r *Runner) awaitOutput(ctx context.Context, outputPath string) (*Output, error) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for parser output %s: %v: %w", outputPath, ctx.Err(), ErrTimeout)
		case <-ticker.C:
			content, err := os.ReadFile(outputPath)
			if err != nil || len(content) == 0 {
				continue
			}
			var out Output
			if err := json.Unmarshal(content, &out); err != nil {
				continue
			}
			return &out, nil
		}
	}
}
