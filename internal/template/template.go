// Package template renders the batch command per target before launch.
package template

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/gramckode/parallel-ssh/internal/ssh"
	"github.com/gramckode/parallel-ssh/internal/target"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Context provides the data available inside a command template
type Context struct {
	Host       string            `json:"host"`
	Tags       []string          `json:"tags"`
	Properties map[string]string `json:"properties"`
}

// newContext creates a template context from a target
func newContext(t target.Target) Context {
	return Context{
		Host:       t.Host,
		Tags:       t.Tags,
		Properties: t.Properties,
	}
}

// IsTemplate checks if a command string contains template syntax
func IsTemplate(command string) bool {
	return strings.Contains(command, "{{") && strings.Contains(command, "}}")
}

// Validate parses a template string without executing it
func Validate(templateStr string) error {
	_, err := template.New("validation").Funcs(templateFuncs()).Parse(templateStr)
	return err
}

// Render executes a command template against one target
func Render(templateStr string, t target.Target) (string, error) {
	tmpl, err := template.New("command").Funcs(templateFuncs()).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse command template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newContext(t)); err != nil {
		return "", fmt.Errorf("failed to execute command template for %s: %w", t.Host, err)
	}

	return buf.String(), nil
}

// templateFuncs returns custom template functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"title":     cases.Title(language.English).String,
		"trim":      strings.TrimSpace,
		"replace":   strings.ReplaceAll,
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,

		"hasTag": func(tags []string, tag string) bool {
			for _, t := range tags {
				if strings.EqualFold(t, tag) {
					return true
				}
			}
			return false
		},

		"prop": func(props map[string]string, key string) string {
			return props[key]
		},

		"propDefault": func(props map[string]string, key, defaultValue string) string {
			if value, exists := props[key]; exists {
				return value
			}
			return defaultValue
		},

		"hostShort": func(host string) string {
			if idx := strings.Index(host, "."); idx != -1 {
				return host[:idx]
			}
			return host
		},

		"hostDomain": func(host string) string {
			if idx := strings.Index(host, "."); idx != -1 {
				return host[idx+1:]
			}
			return ""
		},
	}
}

// RenderingRunner decorates a runner so the batch command is treated as a
// template and rendered against each target right before launch. The
// supervisor still sees a single command per batch.
type RenderingRunner struct {
	inner   ssh.Runner
	targets map[string]target.Target
}

// NewRenderingRunner wraps inner with per-target command rendering
func NewRenderingRunner(inner ssh.Runner, targets []target.Target) *RenderingRunner {
	byHost := make(map[string]target.Target, len(targets))
	for _, t := range targets {
		byHost[t.Host] = t
	}
	return &RenderingRunner{inner: inner, targets: byHost}
}

// Launch renders the command for host and delegates to the wrapped runner
func (r *RenderingRunner) Launch(ctx context.Context, host, command string) (ssh.Process, error) {
	t, ok := r.targets[host]
	if !ok {
		t = target.Target{Host: host, Original: host}
	}

	rendered, err := Render(command, t)
	if err != nil {
		return nil, err
	}

	return r.inner.Launch(ctx, host, rendered)
}
