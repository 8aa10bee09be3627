package modelrt

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelhost/internal/ipc"
)

const qwenStyle = `{{- range .Messages }}<|im_start|>{{ .Role }}
{{ .Content }}<|im_end|>
{{ end }}<|im_start|>assistant
{{ if not .Think }}<think>

</think>

{{ end }}`

const plainChat = `{{ range .Messages }}[{{ title .Role }}] {{ trim .Content }}
{{ end }}[Assistant]`

func TestParsePrecision(t *testing.T) {
	for in, want := range map[string]Precision{
		"":         PrecisionStandard,
		"standard": PrecisionStandard,
		"8BIT":     Precision8Bit,
		" 4bit ":   Precision4Bit,
	} {
		got, err := ParsePrecision(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePrecision("3bit")
	assert.Error(t, err)
}

func TestChatTemplateCapabilities(t *testing.T) {
	var none *ChatTemplate
	assert.Equal(t, ipc.Capabilities{}, none.Capabilities())

	plain, err := ParseChatTemplate(plainChat)
	require.NoError(t, err)
	assert.Equal(t, ipc.Capabilities{ChatTemplate: true}, plain.Capabilities())

	thinking, err := ParseChatTemplate(qwenStyle)
	require.NoError(t, err)
	assert.Equal(t, ipc.Capabilities{ChatTemplate: true, Thinking: true}, thinking.Capabilities())
}

func TestRenderThinkingSwitch(t *testing.T) {
	tmpl, err := ParseChatTemplate(qwenStyle)
	require.NoError(t, err)
	turns := []ipc.Turn{{Role: ipc.RoleUser, Content: "2+2?"}}

	def, err := tmpl.Render(turns, nil)
	require.NoError(t, err)
	assert.NotContains(t, def, "<think>")

	off := false
	disabled, err := tmpl.Render(turns, &off)
	require.NoError(t, err)
	assert.Contains(t, disabled, "<think>\n\n</think>")
	assert.Contains(t, disabled, "<|im_start|>user\n2+2?<|im_end|>")
}

func TestRenderFuncs(t *testing.T) {
	tmpl, err := ParseChatTemplate(plainChat)
	require.NoError(t, err)
	out, err := tmpl.Render([]ipc.Turn{{Role: "user", Content: "  hi  "}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "[User] hi\n[Assistant]", out)

	var none *ChatTemplate
	_, err = none.Render(nil, nil)
	assert.ErrorIs(t, err, ErrNoChatTemplate)
}

func TestLoadChatTemplateMissing(t *testing.T) {
	tmpl, err := LoadChatTemplate(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, tmpl)
}

func TestLoadChatTemplateFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChatTemplateFile), []byte("{{ range .Messages }}{{ .Content }}\r\n{{ end }}"), 0o644))
	tmpl, err := LoadChatTemplate(dir)
	require.NoError(t, err)
	out, err := tmpl.Render([]ipc.Turn{{Role: "user", Content: "a"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a\n", out)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "Four.", StripThinking("<think>\nadding\n</think>\n\nFour."))
	assert.Equal(t, "plain", StripThinking("plain"))
}

func TestSelectWeights(t *testing.T) {
	dir := t.TempDir()
	_, err := SelectWeights(dir, PrecisionStandard)
	assert.Error(t, err)

	for _, name := range []string{"model-f16.gguf", "model-Q4_K_M.gguf", "model-q8_0.gguf", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	files, err := WeightFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	got, err := SelectWeights(dir, Precision4Bit)
	require.NoError(t, err)
	assert.Equal(t, "model-Q4_K_M.gguf", filepath.Base(got))

	got, err = SelectWeights(dir, Precision8Bit)
	require.NoError(t, err)
	assert.Equal(t, "model-q8_0.gguf", filepath.Base(got))

	got, err = SelectWeights(dir, PrecisionStandard)
	require.NoError(t, err)
	assert.Equal(t, "model-f16.gguf", filepath.Base(got))
}

func TestStubLoaderWithoutLlama(t *testing.T) {
	if LlamaBuilt() {
		t.Skip("llama runtime compiled in")
	}
	_, err := NewLlamaLoader(LlamaConfig{}).Load(context.Background(), t.TempDir(), PrecisionStandard)
	require.Error(t, err)
	assert.True(t, IsDependencyUnavailable(err))
}
