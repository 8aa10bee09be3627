// Package ipc defines the message protocol spoken between the controller and
// a model worker process, and a line-delimited JSON channel that carries it.
//
// Every message is a single JSON object terminated by '\n'. The "tag" field
// selects the variant:
//
//	{"tag":"prompt","id":"...","payload":{"input":"Hello","max_new_tokens":64,"mode":"generate"}}
//	{"tag":"result","id":"...","text":"..."}
//	{"tag":"error","id":"...","detail":"..."}
//	{"tag":"ready","capabilities":{"chat_template":true,"thinking":false}}
//	{"tag":"exit"}
package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tag names a protocol message variant on the wire.
type Tag string

const (
	TagPrompt Tag = "prompt"
	TagExit   Tag = "exit"
	TagReady  Tag = "ready"
	TagError  Tag = "error"
	TagResult Tag = "result"
)

// Mode selects how a prompt is shaped and how the worker decodes it.
type Mode string

const (
	ModeConversation Mode = "conversation"
	ModeQA           Mode = "qa"
	ModeGenerate     Mode = "generate"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeConversation, ModeQA, ModeGenerate:
		return true
	}
	return false
}

// Chat roles used in turn lists.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged entry of a chat transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input is either a raw prompt string or an ordered list of turns.
// Exactly one form is meaningful: Turns when non-nil, Text otherwise.
type Input struct {
	Text  string
	Turns []Turn
}

// TextInput wraps a raw prompt string.
func TextInput(s string) Input { return Input{Text: s} }

// TurnsInput wraps a turn list. A nil list is stored as empty so the input
// still encodes as a JSON array.
func TurnsInput(turns []Turn) Input {
	if turns == nil {
		turns = []Turn{}
	}
	return Input{Turns: turns}
}

// IsTurns reports whether the input carries a turn list.
func (in Input) IsTurns() bool { return in.Turns != nil }

func (in Input) MarshalJSON() ([]byte, error) {
	if in.Turns != nil {
		return json.Marshal(in.Turns)
	}
	return json.Marshal(in.Text)
}

func (in *Input) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var turns []Turn
		if err := json.Unmarshal(b, &turns); err != nil {
			return fmt.Errorf("ipc: decode turns: %w", err)
		}
		*in = TurnsInput(turns)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("ipc: input must be a string or a list of turns: %w", err)
	}
	*in = TextInput(s)
	return nil
}

// Payload is the body of a Prompt message.
type Payload struct {
	Input        Input `json:"input"`
	MaxNewTokens int   `json:"max_new_tokens"`
	Mode         Mode  `json:"mode"`
}

// Capabilities describes what a loaded model supports. It is resolved once
// when the model is loaded and reported in the Ready message.
type Capabilities struct {
	// ChatTemplate is true when the model ships a native chat template.
	ChatTemplate bool `json:"chat_template"`
	// Thinking is true when that template carries reasoning scaffolding.
	Thinking bool `json:"thinking"`
}

// Message is a protocol message. The set of implementations is closed.
type Message interface {
	Tag() Tag
	isMessage()
}

// Prompt asks the worker to run one generation. Controller to worker.
type Prompt struct {
	ID      string
	Payload Payload
}

// Exit asks the worker to stop its loop and release the model. Controller to worker.
type Exit struct{}

// Ready reports a successful model load. Worker to controller, sent once.
type Ready struct {
	Capabilities Capabilities
}

// Error reports a load failure (empty ID) or a failed generation (ID of the
// prompt). Worker to controller.
type Error struct {
	ID     string
	Detail string
}

// Result carries generated text for the prompt with the same ID. Worker to controller.
type Result struct {
	ID   string
	Text string
}

func (Prompt) Tag() Tag { return TagPrompt }
func (Exit) Tag() Tag   { return TagExit }
func (Ready) Tag() Tag  { return TagReady }
func (Error) Tag() Tag  { return TagError }
func (Result) Tag() Tag { return TagResult }

func (Prompt) isMessage() {}
func (Exit) isMessage()   {}
func (Ready) isMessage()  {}
func (Error) isMessage()  {}
func (Result) isMessage() {}

// envelope is the flat wire form shared by all variants.
type envelope struct {
	Tag          Tag           `json:"tag"`
	ID           string        `json:"id,omitempty"`
	Payload      *Payload      `json:"payload,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	Text         string        `json:"text,omitempty"`
}

// UnknownTagError is returned when a line carries a tag this package does not know.
type UnknownTagError struct{ Tag Tag }

func (e UnknownTagError) Error() string { return fmt.Sprintf("ipc: unknown message tag %q", e.Tag) }

// Encode renders m as a single JSON object without a trailing newline.
func Encode(m Message) ([]byte, error) {
	var env envelope
	switch v := m.(type) {
	case Prompt:
		p := v.Payload
		env = envelope{Tag: TagPrompt, ID: v.ID, Payload: &p}
	case Exit:
		env = envelope{Tag: TagExit}
	case Ready:
		c := v.Capabilities
		env = envelope{Tag: TagReady, Capabilities: &c}
	case Error:
		env = envelope{Tag: TagError, ID: v.ID, Detail: v.Detail}
	case Result:
		env = envelope{Tag: TagResult, ID: v.ID, Text: v.Text}
	default:
		return nil, fmt.Errorf("ipc: cannot encode %T", m)
	}
	return json.Marshal(env)
}

// Decode parses one JSON object produced by Encode.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("ipc: decode message: %w", err)
	}
	switch env.Tag {
	case TagPrompt:
		var p Payload
		if env.Payload != nil {
			p = *env.Payload
		}
		return Prompt{ID: env.ID, Payload: p}, nil
	case TagExit:
		return Exit{}, nil
	case TagReady:
		var c Capabilities
		if env.Capabilities != nil {
			c = *env.Capabilities
		}
		return Ready{Capabilities: c}, nil
	case TagError:
		return Error{ID: env.ID, Detail: env.Detail}, nil
	case TagResult:
		return Result{ID: env.ID, Text: env.Text}, nil
	default:
		return nil, UnknownTagError{Tag: env.Tag}
	}
}
