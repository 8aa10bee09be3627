package worker

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelhost/internal/ipc"
	"modelhost/internal/modelrt"
	"modelhost/internal/modelrt/modelrttest"
)

var convo = []ipc.Turn{
	{Role: ipc.RoleSystem, Content: "You are a helpful AI assistant."},
	{Role: ipc.RoleUser, Content: "hi"},
	{Role: ipc.RoleAssistant, Content: "hello"},
	{Role: ipc.RoleUser, Content: "2+2?"},
}

func TestBuildPlainPrompt(t *testing.T) {
	want := "System: You are a helpful AI assistant.\nUser: hi\nAssistant: hello\nUser: 2+2?\nAssistant:"
	if diff := cmp.Diff(want, BuildPlainPrompt(convo)); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Assistant:", BuildPlainPrompt(nil))
}

func TestCleanupPlainText(t *testing.T) {
	cases := map[string]string{
		"Four.":                               "Four.",
		"  Four.\nUser: and five?":            "Four.",
		"Assistant: Four.\nUser: more":        "Four.",
		"User: hi":                            "hi",
		"Assistant: User: x":                  "",
		"Sure.\n\nAssistant: Anything else?":  "Sure.",
		"multi\nline\nanswer":                 "multi\nline\nanswer",
		"":                                    "",
	}
	for in, want := range cases {
		got := CleanupPlainText(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, got, CleanupPlainText(got), "not idempotent for %q", in)
	}
}

func TestGenerateChatTemplateIsGreedy(t *testing.T) {
	model := &modelrttest.Model{Caps: ipc.Capabilities{ChatTemplate: true}}
	out, err := Generate(context.Background(), model, model.Caps, ipc.Payload{
		Input: ipc.TurnsInput(convo), MaxNewTokens: 32, Mode: ipc.ModeConversation,
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: user|2+2?", out)

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Opts.Sample())
	assert.Equal(t, 32, calls[0].Opts.MaxNewTokens)
	assert.Equal(t, []*bool{nil}, model.ThinkingArgs())
}

func TestGenerateDisablesThinking(t *testing.T) {
	model := &modelrttest.Model{
		Caps: ipc.Capabilities{ChatTemplate: true, Thinking: true},
		Reply: func(ctx context.Context, prompt string, opts modelrt.Options) (string, error) {
			return "<think>\n\n</think>\n\nFour.", nil
		},
	}
	out, err := Generate(context.Background(), model, model.Caps, ipc.Payload{
		Input: ipc.TurnsInput(convo), Mode: ipc.ModeQA,
	})
	require.NoError(t, err)
	assert.Equal(t, "Four.", out)

	args := model.ThinkingArgs()
	require.Len(t, args, 1)
	require.NotNil(t, args[0])
	assert.False(t, *args[0])
	assert.Contains(t, model.Calls()[0].Prompt, "nothink")
}

func TestGeneratePlainTranscriptWithoutTemplate(t *testing.T) {
	model := &modelrttest.Model{Reply: func(ctx context.Context, prompt string, opts modelrt.Options) (string, error) {
		return "Four.\nUser: and five?\nAssistant: Five.", nil
	}}
	out, err := Generate(context.Background(), model, model.Caps, ipc.Payload{
		Input: ipc.TurnsInput(convo), Mode: ipc.ModeConversation,
	})
	require.NoError(t, err)
	assert.Equal(t, "Four.", out)

	call := model.Calls()[0]
	assert.Equal(t, BuildPlainPrompt(convo), call.Prompt)
	assert.False(t, call.Opts.Sample())
}

func TestGenerateModeSamplesEvenWithTemplate(t *testing.T) {
	model := &modelrttest.Model{Caps: ipc.Capabilities{ChatTemplate: true}}
	out, err := Generate(context.Background(), model, model.Caps, ipc.Payload{
		Input: ipc.TextInput("Once upon a time"), Mode: ipc.ModeGenerate,
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: Once upon a time", out)
	assert.True(t, model.Calls()[0].Opts.Sample())
	assert.Empty(t, model.ThinkingArgs())
}

func TestGenerateDefaultsToConversation(t *testing.T) {
	model := &modelrttest.Model{}
	_, err := Generate(context.Background(), model, model.Caps, ipc.Payload{Input: ipc.TextInput("x")})
	require.NoError(t, err)
	assert.False(t, model.Calls()[0].Opts.Sample())
}
