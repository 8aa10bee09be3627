package modelrt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"modelhost/internal/ipc"
)

// ChatTemplateFile is the file name looked up in a model directory.
const ChatTemplateFile = "chat_template.gotmpl"

// ChatTemplate renders a turn list into a flat prompt. Templates are Go
// text/templates executed against templateData.
type ChatTemplate struct {
	src      string
	tmpl     *template.Template
	thinking bool
}

type templateData struct {
	Messages []ipc.Turn
	// Think mirrors the enable-thinking switch; templates with reasoning
	// scaffolding branch on it.
	Think bool
}

var templateFuncs = template.FuncMap{
	"trim":  strings.TrimSpace,
	"title": capitalize,
}

// ParseChatTemplate compiles src.
func ParseChatTemplate(src string) (*ChatTemplate, error) {
	t, err := template.New("chat").Funcs(templateFuncs).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse chat template: %w", err)
	}
	return &ChatTemplate{
		src:      src,
		tmpl:     t,
		thinking: strings.Contains(strings.ToLower(src), "think"),
	}, nil
}

// LoadChatTemplate reads ChatTemplateFile from dir. It returns (nil, nil)
// when the model ships no template.
func LoadChatTemplate(dir string) (*ChatTemplate, error) {
	b, err := os.ReadFile(filepath.Join(dir, ChatTemplateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseChatTemplate(string(bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))))
}

// Thinking reports whether the template carries reasoning scaffolding.
func (t *ChatTemplate) Thinking() bool { return t != nil && t.thinking }

// Render executes the template. Thinking defaults to enabled when
// enableThinking is nil.
func (t *ChatTemplate) Render(turns []ipc.Turn, enableThinking *bool) (string, error) {
	if t == nil {
		return "", ErrNoChatTemplate
	}
	think := true
	if enableThinking != nil {
		think = *enableThinking
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, templateData{Messages: turns, Think: think}); err != nil {
		return "", fmt.Errorf("render chat template: %w", err)
	}
	return buf.String(), nil
}

// Capabilities derives the capability descriptor for a model using t.
func (t *ChatTemplate) Capabilities() ipc.Capabilities {
	return ipc.Capabilities{ChatTemplate: t != nil, Thinking: t.Thinking()}
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> blocks some templates still emit
// and trims the surrounding whitespace.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
