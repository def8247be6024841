package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gramckode/parallel-ssh/internal/result"
)

// Mode defines the available output formatting modes
type Mode string

const (
	// StreamedMode prints output lines with [host] prefixes
	StreamedMode Mode = "streamed"

	// BufferedMode shows a complete block per host, sorted by hostname
	BufferedMode Mode = "buffered"

	// JSONMode emits one NDJSON object per classified target
	JSONMode Mode = "json"
)

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case StreamedMode, BufferedMode, JSONMode:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid output mode '%s': must be one of 'streamed', 'buffered', or 'json'", s)
	}
}

// Formatter renders a completed batch
type Formatter interface {
	// WriteBatch renders all records of a completed batch
	WriteBatch(batch *result.Batch) error
}

// DefaultFormatter implements the Formatter interface for all modes
type DefaultFormatter struct {
	mode   Mode
	writer io.Writer
}

// NewFormatter creates a new formatter with the specified mode and writer
func NewFormatter(mode Mode, writer io.Writer) Formatter {
	if writer == nil {
		writer = os.Stdout
	}
	return &DefaultFormatter{mode: mode, writer: writer}
}

// WriteBatch renders all records of a completed batch
func (f *DefaultFormatter) WriteBatch(batch *result.Batch) error {
	switch f.mode {
	case StreamedMode:
		return f.writeStreamed(batch)
	case BufferedMode:
		return f.writeBuffered(batch)
	case JSONMode:
		return f.writeJSON(batch)
	default:
		return fmt.Errorf("unknown output mode: %s", f.mode)
	}
}

// writeStreamed prints every output line with a [host] prefix, successes in
// completion order followed by failures.
func (f *DefaultFormatter) writeStreamed(batch *result.Batch) error {
	for _, rec := range batch.Successes {
		if err := f.writePrefixed(rec.Host, rec.Stdout); err != nil {
			return err
		}
		if err := f.writePrefixed(rec.Host, rec.Stderr); err != nil {
			return err
		}
	}

	for _, rec := range batch.Failures {
		if _, err := fmt.Fprintf(f.writer, "[%s] FAILED: %s\n", rec.Host, failureDetail(rec)); err != nil {
			return fmt.Errorf("failed to write failure: %w", err)
		}
	}

	return nil
}

// writePrefixed writes each line of text prefixed with the host name
func (f *DefaultFormatter) writePrefixed(host, text string) error {
	if text == "" {
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		if _, err := fmt.Fprintf(f.writer, "[%s] %s\n", host, scanner.Text()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return scanner.Err()
}

// writeBuffered shows a complete block per host, sorted by hostname
func (f *DefaultFormatter) writeBuffered(batch *result.Batch) error {
	successes := make(map[string]result.SuccessRecord, len(batch.Successes))
	failures := make(map[string]result.FailureRecord, len(batch.Failures))

	hosts := make([]string, 0, batch.Total())
	for _, rec := range batch.Successes {
		successes[rec.Host] = rec
		hosts = append(hosts, rec.Host)
	}
	for _, rec := range batch.Failures {
		failures[rec.Host] = rec
		hosts = append(hosts, rec.Host)
	}
	sort.Strings(hosts)

	for i, host := range hosts {
		if i > 0 {
			if _, err := fmt.Fprintln(f.writer); err != nil {
				return fmt.Errorf("failed to write separator: %w", err)
			}
		}

		if _, err := fmt.Fprintf(f.writer, "=== %s ===\n", host); err != nil {
			return fmt.Errorf("failed to write host header: %w", err)
		}

		if rec, ok := successes[host]; ok {
			if err := f.writeBlock(rec.Stdout); err != nil {
				return err
			}
			if err := f.writeBlock(rec.Stderr); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(f.writer, "Exit code: %d\n", rec.ExitCode); err != nil {
				return fmt.Errorf("failed to write exit info: %w", err)
			}
			continue
		}

		if _, err := fmt.Fprintf(f.writer, "FAILED: %s\n", failureDetail(failures[host])); err != nil {
			return fmt.Errorf("failed to write failure: %w", err)
		}
	}

	return nil
}

// writeBlock writes text ensuring it ends with a newline
func (f *DefaultFormatter) writeBlock(text string) error {
	if text == "" {
		return nil
	}
	if _, err := fmt.Fprint(f.writer, text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !strings.HasSuffix(text, "\n") {
		if _, err := fmt.Fprintln(f.writer); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	return nil
}

// JSONRecord is the NDJSON structure for one classified target
type JSONRecord struct {
	Host     string `json:"host"`
	Status   string `json:"status"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Kind     string `json:"failure_kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

// writeJSON emits one NDJSON object per classified target
func (f *DefaultFormatter) writeJSON(batch *result.Batch) error {
	for _, rec := range batch.Successes {
		code := rec.ExitCode
		if err := f.writeJSONRecord(JSONRecord{
			Host:     rec.Host,
			Status:   "success",
			Stdout:   rec.Stdout,
			Stderr:   rec.Stderr,
			ExitCode: &code,
		}); err != nil {
			return err
		}
	}

	for _, rec := range batch.Failures {
		out := JSONRecord{
			Host:     rec.Host,
			Status:   "failure",
			Kind:     rec.Kind.String(),
			ExitCode: rec.ExitCode,
		}
		if rec.Err != nil {
			out.Error = rec.Err.Error()
		}
		if err := f.writeJSONRecord(out); err != nil {
			return err
		}
	}

	return nil
}

func (f *DefaultFormatter) writeJSONRecord(rec JSONRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintf(f.writer, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// failureDetail describes a failure record for the text modes
func failureDetail(rec result.FailureRecord) string {
	switch rec.Kind {
	case result.KindUnexpectedExit:
		if rec.ExitCode != nil {
			return fmt.Sprintf("unexpected exit code %d", *rec.ExitCode)
		}
		return "unexpected exit code"
	case result.KindTimeout:
		return "timeout exceeded"
	case result.KindLaunch:
		if rec.Err != nil {
			return fmt.Sprintf("launch failed: %v", rec.Err)
		}
		return "launch failed"
	default:
		return rec.Kind.String()
	}
}
