// Package modelrttest provides a scripted in-memory model runtime for tests
// of the worker and everything that spawns it.
package modelrttest

import (
	"context"
	"strings"
	"sync"
	"time"

	"modelhost/internal/ipc"
	"modelhost/internal/modelrt"
)

// Call records one Complete invocation.
type Call struct {
	Prompt string
	Opts   modelrt.Options
}

// Model is a fake modelrt.Model. The zero value echoes the last prompt line.
type Model struct {
	Caps ipc.Capabilities
	// Template renders turns when Caps.ChatTemplate is set. Nil uses a
	// "role|content" line format followed by a thinking marker.
	Template func(turns []ipc.Turn, enableThinking *bool) (string, error)
	// Reply produces the raw completion. Nil echoes.
	Reply func(ctx context.Context, prompt string, opts modelrt.Options) (string, error)

	mu       sync.Mutex
	calls    []Call
	thinking []*bool
	closed   bool
}

var _ modelrt.Model = (*Model)(nil)

func (m *Model) Capabilities() ipc.Capabilities { return m.Caps }

func (m *Model) ApplyChatTemplate(turns []ipc.Turn, enableThinking *bool) (string, error) {
	if !m.Caps.ChatTemplate {
		return "", modelrt.ErrNoChatTemplate
	}
	m.mu.Lock()
	m.thinking = append(m.thinking, enableThinking)
	m.mu.Unlock()
	if m.Template != nil {
		return m.Template(turns, enableThinking)
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Role + "|" + t.Content + "\n")
	}
	if enableThinking != nil && !*enableThinking {
		b.WriteString("nothink\n")
	}
	return b.String(), nil
}

func (m *Model) Complete(ctx context.Context, prompt string, opts modelrt.Options) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Prompt: prompt, Opts: opts})
	m.mu.Unlock()
	if m.Reply != nil {
		return m.Reply(ctx, prompt, opts)
	}
	return Echo(prompt), nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Calls returns a copy of the recorded Complete calls.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// ThinkingArgs returns the enableThinking argument of every template render.
func (m *Model) ThinkingArgs() []*bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*bool(nil), m.thinking...)
}

// Closed reports whether Close was called.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Echo answers with the last non-empty line of prompt that is not an open
// "Assistant:" line.
func Echo(prompt string) string {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l == "" || l == "Assistant:" || l == "nothink" {
			continue
		}
		return "echo: " + l
	}
	return "echo:"
}

// Loader is a fake modelrt.Loader.
type Loader struct {
	// Model is returned on success; nil makes a fresh zero Model per load.
	Model *Model
	Err   error
	// Delay simulates a slow load. It honours ctx.
	Delay time.Duration

	mu    sync.Mutex
	loads []string
}

var _ modelrt.Loader = (*Loader)(nil)

func (l *Loader) Load(ctx context.Context, dir string, precision modelrt.Precision) (modelrt.Model, error) {
	l.mu.Lock()
	l.loads = append(l.loads, dir)
	l.mu.Unlock()
	if l.Delay > 0 {
		t := time.NewTimer(l.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Model != nil {
		return l.Model, nil
	}
	return &Model{}, nil
}

// Loads returns the directories passed to Load.
func (l *Loader) Loads() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loads...)
}
