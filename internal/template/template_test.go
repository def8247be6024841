package template

import (
	"context"
	"sync"
	"testing"

	"github.com/gramckode/parallel-ssh/internal/ssh"
	"github.com/gramckode/parallel-ssh/internal/target"
)

func TestIsTemplate(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"uptime", false},
		{"echo {{.Host}}", true},
		{"echo {{ .Host }}", true},
		{"echo {missing}", false},
		{"echo }}{{", true},
	}

	for _, tt := range tests {
		if got := IsTemplate(tt.command); got != tt.want {
			t.Errorf("IsTemplate(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("echo {{.Host}}"); err != nil {
		t.Errorf("valid template rejected: %v", err)
	}
	if err := Validate("echo {{.Host"); err == nil {
		t.Error("unterminated template accepted")
	}
	if err := Validate("echo {{bogusfunc .Host}}"); err == nil {
		t.Error("unknown function accepted")
	}
}

func TestRender(t *testing.T) {
	tgt := target.Target{
		Host:       "web01.prod.example.com",
		Tags:       []string{"web", "prod"},
		Properties: map[string]string{"env": "production", "port": "8080"},
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "host substitution",
			template: "echo {{.Host}}",
			want:     "echo web01.prod.example.com",
		},
		{
			name:     "upper function",
			template: "echo {{upper .Host}}",
			want:     "echo WEB01.PROD.EXAMPLE.COM",
		},
		{
			name:     "hostShort",
			template: "echo {{hostShort .Host}}",
			want:     "echo web01",
		},
		{
			name:     "hostDomain",
			template: "echo {{hostDomain .Host}}",
			want:     "echo prod.example.com",
		},
		{
			name:     "property lookup",
			template: "curl localhost:{{prop .Properties \"port\"}}/health",
			want:     "curl localhost:8080/health",
		},
		{
			name:     "property default",
			template: "echo {{propDefault .Properties \"region\" \"us-east\"}}",
			want:     "echo us-east",
		},
		{
			name:     "tag conditional",
			template: "{{if hasTag .Tags \"prod\"}}systemctl reload nginx{{else}}systemctl restart nginx{{end}}",
			want:     "systemctl reload nginx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tgt)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	if _, err := Render("echo {{.Host", target.Target{Host: "h1"}); err == nil {
		t.Error("expected parse error")
	}
}

// recordingRunner captures the command each Launch receives
type recordingRunner struct {
	mu       sync.Mutex
	commands map[string]string
}

func (r *recordingRunner) Launch(ctx context.Context, host, command string) (ssh.Process, error) {
	r.mu.Lock()
	r.commands[host] = command
	r.mu.Unlock()
	return &stubProc{done: closedChan()}, nil
}

type stubProc struct {
	done chan struct{}
}

func (p *stubProc) Done() <-chan struct{} { return p.done }
func (p *stubProc) Outcome() ssh.Outcome  { return ssh.Outcome{} }
func (p *stubProc) Kill() error           { return nil }

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestRenderingRunner(t *testing.T) {
	inner := &recordingRunner{commands: make(map[string]string)}
	targets := []target.Target{
		{Host: "web01", Properties: map[string]string{"env": "production"}},
		{Host: "web02", Properties: map[string]string{"env": "staging"}},
	}

	runner := NewRenderingRunner(inner, targets)

	for _, tgt := range targets {
		if _, err := runner.Launch(context.Background(), tgt.Host, "deploy --env {{prop .Properties \"env\"}}"); err != nil {
			t.Fatalf("Launch failed for %s: %v", tgt.Host, err)
		}
	}

	if got := inner.commands["web01"]; got != "deploy --env production" {
		t.Errorf("web01 command = %q", got)
	}
	if got := inner.commands["web02"]; got != "deploy --env staging" {
		t.Errorf("web02 command = %q", got)
	}
}

func TestRenderingRunnerUnknownHost(t *testing.T) {
	inner := &recordingRunner{commands: make(map[string]string)}
	runner := NewRenderingRunner(inner, nil)

	// A host missing from the target map still renders with a bare context
	if _, err := runner.Launch(context.Background(), "stray", "echo {{.Host}}"); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if got := inner.commands["stray"]; got != "echo stray" {
		t.Errorf("stray command = %q", got)
	}
}

func TestRenderingRunnerRenderError(t *testing.T) {
	inner := &recordingRunner{commands: make(map[string]string)}
	runner := NewRenderingRunner(inner, nil)

	if _, err := runner.Launch(context.Background(), "h1", "echo {{.Host"); err == nil {
		t.Error("expected render error to surface as launch error")
	}
}
