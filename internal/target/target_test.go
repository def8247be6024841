package target

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func hostsOf(targets []Target) []string {
	hosts := make([]string, len(targets))
	for i, t := range targets {
		hosts[i] = t.Host
	}
	return hosts
}

func TestParseHosts(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "single host",
			input: "web01",
			want:  []string{"web01"},
		},
		{
			name:  "multiple hosts preserve order",
			input: "web01,db01,cache01",
			want:  []string{"web01", "db01", "cache01"},
		},
		{
			name:  "whitespace around entries",
			input: " web01 , db01 ",
			want:  []string{"web01", "db01"},
		},
		{
			name:  "empty entries skipped",
			input: "web01,,db01,",
			want:  []string{"web01", "db01"},
		},
		{
			name:  "user at host form passed through",
			input: "deploy@web01.example.com",
			want:  []string{"deploy@web01.example.com"},
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only separators",
			input:   ",,,",
			wantErr: true,
		},
		{
			name:    "host with internal whitespace",
			input:   "web01,bad host",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := parser.ParseHosts(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", hostsOf(targets))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := hostsOf(targets); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseHosts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseHostFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")

	content := `# production web tier
web01
web02

# database tier
db01
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write host file: %v", err)
	}

	parser := NewParser()
	targets, err := parser.ParseHostFile(path)
	if err != nil {
		t.Fatalf("ParseHostFile failed: %v", err)
	}

	want := []string{"web01", "web02", "db01"}
	if got := hostsOf(targets); !reflect.DeepEqual(got, want) {
		t.Errorf("ParseHostFile() = %v, want %v", got, want)
	}
}

func TestParseHostFileMissing(t *testing.T) {
	parser := NewParser()
	if _, err := parser.ParseHostFile("/nonexistent/hosts.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseHostFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, []byte("# only comments\n\n"), 0644); err != nil {
		t.Fatalf("failed to write host file: %v", err)
	}

	parser := NewParser()
	if _, err := parser.ParseHostFile(path); err == nil {
		t.Fatal("expected error for host file with no targets")
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"valid host", Target{Host: "web01"}, false},
		{"valid fqdn", Target{Host: "web01.prod.example.com"}, false},
		{"empty host", Target{Host: ""}, true},
		{"space in host", Target{Host: "web 01"}, true},
		{"tab in host", Target{Host: "web\t01"}, true},
		{"newline in host", Target{Host: "web\n01"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTarget(%q) error = %v, wantErr %v", tt.target.Host, err, tt.wantErr)
			}
		})
	}
}

func TestParseHostSpecKeepsOriginal(t *testing.T) {
	spec := "  web01  "
	target, err := ParseHostSpec(spec)
	if err != nil {
		t.Fatalf("ParseHostSpec failed: %v", err)
	}
	if target.Host != "web01" {
		t.Errorf("Host = %q, want trimmed 'web01'", target.Host)
	}
	if target.Original != spec {
		t.Errorf("Original = %q, want untouched %q", target.Original, spec)
	}
}
