package target

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Target represents a remote host the command is executed against. The host
// identifier is opaque to the supervisor; tags and properties only exist for
// filtering, grouping and command templating.
type Target struct {
	Host       string            // Hostname or address, passed to ssh verbatim
	Tags       []string          // Group membership tags (from inventory)
	Properties map[string]string // Free-form host variables (from inventory)
	Original   string            // Original specification string
}

// Parser defines the interface for parsing and validating host lists
type Parser interface {
	// ParseHosts parses comma-separated host identifiers
	ParseHosts(input string) ([]Target, error)

	// ParseHostFile reads host identifiers from a file (one per line)
	ParseHostFile(filename string) ([]Target, error)

	// ParseStdin reads host identifiers from stdin
	ParseStdin() ([]Target, error)

	// ValidateTarget validates a target for correctness
	ValidateTarget(target Target) error
}

// DefaultParser implements the Parser interface
type DefaultParser struct{}

// NewParser creates a new DefaultParser instance
func NewParser() Parser {
	return &DefaultParser{}
}

// ParseHostSpec parses a single host identifier
func ParseHostSpec(spec string) (Target, error) {
	target := Target{
		Host:     strings.TrimSpace(spec),
		Original: spec,
	}

	if err := ValidateTarget(target); err != nil {
		return target, err
	}

	return target, nil
}

// ValidateTarget validates a target for correctness
func ValidateTarget(target Target) error {
	if target.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	// A host identifier with embedded whitespace would be split into extra
	// ssh arguments and silently change the invocation.
	if strings.ContainsAny(target.Host, " \t\r\n") {
		return fmt.Errorf("host '%s' contains whitespace", target.Host)
	}

	return nil
}

// ParseHosts parses comma-separated host identifiers, preserving input order
func (p *DefaultParser) ParseHosts(input string) ([]Target, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty hosts input")
	}

	specs := strings.Split(input, ",")
	targets := make([]Target, 0, len(specs))

	for i, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue // Skip empty entries
		}

		target, err := ParseHostSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("error parsing host %d ('%s'): %w", i+1, spec, err)
		}

		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no valid hosts found in input")
	}

	return targets, nil
}

// ParseHostFile reads host identifiers from a file (one per line)
func (p *DefaultParser) ParseHostFile(filename string) ([]Target, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open host file '%s': %w", filename, err)
	}
	defer file.Close()

	return p.parseFromReader(file)
}

// ParseStdin reads host identifiers from stdin
func (p *DefaultParser) ParseStdin() ([]Target, error) {
	return p.parseFromReader(os.Stdin)
}

// parseFromReader reads host identifiers from any io.Reader (one per line)
func (p *DefaultParser) parseFromReader(reader io.Reader) ([]Target, error) {
	scanner := bufio.NewScanner(reader)
	targets := make([]Target, 0)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		target, err := ParseHostSpec(line)
		if err != nil {
			return nil, fmt.Errorf("error parsing line %d ('%s'): %w", lineNum, line, err)
		}

		targets = append(targets, target)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no valid hosts found in input")
	}

	return targets, nil
}

// ValidateTarget validates a target for correctness
func (p *DefaultParser) ValidateTarget(target Target) error {
	return ValidateTarget(target)
}
