package worker

import (
	"context"
	"fmt"
	"strings"

	"modelhost/internal/ipc"
	"modelhost/internal/modelrt"
)

// transcriptMarkers are the role prefixes written by BuildPlainPrompt that
// a model without turn boundaries tends to keep producing.
var transcriptMarkers = []string{"User:", "Assistant:"}

// Generate runs one generation for payload against model.
//
// Chat-template models in conversation/qa mode decode greedily through the
// template; templates with thinking scaffolding are rendered with thinking
// switched off. Everything else is flattened to a plain transcript. Free
// generation always samples.
func Generate(ctx context.Context, model modelrt.Model, caps ipc.Capabilities, p ipc.Payload) (string, error) {
	mode := p.Mode
	if mode == "" {
		mode = ipc.ModeConversation
	}
	if !mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", p.Mode)
	}

	if caps.ChatTemplate && mode != ipc.ModeGenerate {
		turns := p.Input.Turns
		if !p.Input.IsTurns() {
			turns = []ipc.Turn{{Role: ipc.RoleUser, Content: p.Input.Text}}
		}
		var enableThinking *bool
		if caps.Thinking {
			off := false
			enableThinking = &off
		}
		prompt, err := model.ApplyChatTemplate(turns, enableThinking)
		if err != nil {
			return "", err
		}
		out, err := model.Complete(ctx, prompt, modelrt.Deterministic(p.MaxNewTokens))
		if err != nil {
			return "", err
		}
		if caps.Thinking {
			return modelrt.StripThinking(out), nil
		}
		return strings.TrimSpace(out), nil
	}

	prompt := p.Input.Text
	if p.Input.IsTurns() {
		prompt = BuildPlainPrompt(p.Input.Turns)
	}
	opts := modelrt.Deterministic(p.MaxNewTokens)
	if mode == ipc.ModeGenerate {
		opts = modelrt.Sampling(p.MaxNewTokens)
	}
	out, err := model.Complete(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	return CleanupPlainText(out), nil
}

// BuildPlainPrompt flattens turns into "Role: content" lines and ends with
// an open "Assistant:" line for the model to continue.
func BuildPlainPrompt(turns []ipc.Turn) string {
	lines := make([]string, 0, len(turns)+1)
	for _, t := range turns {
		lines = append(lines, capitalize(t.Role)+": "+t.Content)
	}
	lines = append(lines, "Assistant:")
	return strings.Join(lines, "\n")
}

// CleanupPlainText keeps only the model's first continuation: a single
// leading role marker is dropped and everything from the next marker on is
// cut. Applying it twice yields the same text.
func CleanupPlainText(s string) string {
	s = strings.TrimSpace(s)
	for _, m := range transcriptMarkers {
		if strings.HasPrefix(s, m) {
			s = strings.TrimLeft(s[len(m):], " \t\r\n")
			break
		}
	}
	cut := len(s)
	for _, m := range transcriptMarkers {
		if i := strings.Index(s, m); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(s[:cut])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
