package manager

import (
	"context"

	"modelhost/internal/ipc"
	"modelhost/pkg/types"
)

const defaultMaxNewTokens = 256

// buildPayload shapes a request into the worker payload for mode. A failing
// history lookup is logged and the prompt goes out without history.
func (m *Manager) buildPayload(ctx context.Context, req types.InferRequest, mode ipc.Mode) ipc.Payload {
	p := ipc.Payload{MaxNewTokens: req.MaxNewTokens, Mode: mode}
	if p.MaxNewTokens <= 0 {
		p.MaxNewTokens = defaultMaxNewTokens
	}
	system := ipc.Turn{Role: ipc.RoleSystem, Content: m.systemPrompt}
	user := ipc.Turn{Role: ipc.RoleUser, Content: req.Prompt}

	switch mode {
	case ipc.ModeGenerate:
		p.Input = ipc.TextInput(req.Prompt)
	case ipc.ModeQA:
		p.Input = ipc.TurnsInput([]ipc.Turn{system, user})
	default:
		turns := []ipc.Turn{system}
		if m.history != nil && req.SessionID != "" {
			prior, err := m.history.PriorTurns(ctx, req.SessionID, req.ModelID, req.ShareContext)
			if err != nil {
				m.log.Warn().Err(err).Str("session", req.SessionID).Str("model", req.ModelID).Msg("load history")
			} else {
				turns = append(turns, prior...)
			}
		}
		p.Input = ipc.TurnsInput(append(turns, user))
	}
	return p
}
