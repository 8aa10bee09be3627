package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelhost/internal/ipc"
	"modelhost/internal/store"
	"modelhost/pkg/types"
)

type memStore struct {
	mu      sync.Mutex
	msgs    map[string][]store.Message
	readErr error
	reads   int
}

func newMemStore() *memStore { return &memStore{msgs: map[string][]store.Message{}} }

func (m *memStore) Messages(ctx context.Context, id string) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]store.Message(nil), m.msgs[id]...), nil
}

func (m *memStore) AddMessages(ctx context.Context, msgs ...store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range msgs {
		m.msgs[x.SessionID] = append(m.msgs[x.SessionID], x)
	}
	return nil
}

func newService(t *testing.T, db Store) *Service {
	t.Helper()
	s := New(db, time.Minute, zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func conversation(session, model, prompt string) types.InferRequest {
	return types.InferRequest{SessionID: session, ModelID: model, Name: model + "-name", Prompt: prompt, Mode: "conversation"}
}

func TestRecordThenPriorTurnsFiltersByModel(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	s := newService(t, db)

	require.NoError(t, s.Record(ctx, conversation("s1", "m1", "hi"), "hello"))
	require.NoError(t, s.Record(ctx, conversation("s1", "m2", "yo"), "hey"))

	turns, err := s.PriorTurns(ctx, "s1", "m1", false)
	require.NoError(t, err)
	assert.Equal(t, []ipc.Turn{
		{Role: ipc.RoleUser, Content: "hi"},
		{Role: ipc.RoleAssistant, Content: "hello"},
	}, turns)

	turns, err = s.PriorTurns(ctx, "s1", "m1", true)
	require.NoError(t, err)
	assert.Len(t, turns, 4)

	assert.Len(t, db.msgs["s1"], 4)
	assert.Equal(t, "m2", db.msgs["s1"][2].ModelID)
}

func TestPriorTurnsLoadsFromStoreOnce(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	db.msgs["s1"] = []store.Message{
		{SessionID: "s1", ModelID: "m1", Name: "M1", Role: "user", Content: "old"},
		{SessionID: "s1", ModelID: "m1", Name: "M1", Role: "assistant", Content: "reply"},
	}
	s := newService(t, db)

	turns, err := s.PriorTurns(ctx, "s1", "m1", false)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
	_, err = s.PriorTurns(ctx, "s1", "m1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, db.reads)

	h := s.History("s1", "m1", false)
	require.Len(t, h, 2)
	assert.Equal(t, "M1", h[0].Name)
}

func TestRecordKeepsStoredHistory(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	db.msgs["s1"] = []store.Message{{SessionID: "s1", ModelID: "m1", Role: "user", Content: "old"}}
	s := newService(t, db)

	require.NoError(t, s.Record(ctx, conversation("s1", "m1", "new"), "answer"))
	turns, err := s.PriorTurns(ctx, "s1", "m1", false)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "old", turns[0].Content)
}

func TestPriorTurnsStoreError(t *testing.T) {
	db := newMemStore()
	db.readErr = errors.New("disk gone")
	s := newService(t, db)
	_, err := s.PriorTurns(context.Background(), "s1", "m1", false)
	assert.ErrorContains(t, err, "disk gone")

	turns, err := s.PriorTurns(context.Background(), "", "m1", false)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestClearAndForget(t *testing.T) {
	ctx := context.Background()
	s := newService(t, newMemStore())
	require.NoError(t, s.Record(ctx, conversation("s1", "m1", "a"), "b"))
	require.NoError(t, s.Record(ctx, conversation("s1", "m2", "c"), "d"))

	s.Clear("s1", "m1", false)
	assert.Empty(t, s.History("s1", "m1", false))
	assert.Len(t, s.History("s1", "m2", false), 2)

	s.Clear("s1", "", true)
	assert.Empty(t, s.History("s1", "m2", true))

	require.NoError(t, s.Record(ctx, conversation("s2", "m1", "a"), "b"))
	s.Forget("s2")
	assert.Empty(t, s.History("s2", "m1", true))

	s.Clear("missing", "m1", false)
}

func TestRecordWithoutSessionIsNoop(t *testing.T) {
	db := newMemStore()
	s := newService(t, db)
	require.NoError(t, s.Record(context.Background(), types.InferRequest{ModelID: "m1", Prompt: "x"}, "y"))
	assert.Empty(t, db.msgs)
}

func TestRememberLeavesCacheWhenStoreUnreadable(t *testing.T) {
	ctx := context.Background()
	db := newMemStore()
	db.msgs["s1"] = []store.Message{
		{SessionID: "s1", ModelID: "m1", Role: "user", Content: "old"},
		{SessionID: "s1", ModelID: "m1", Role: "assistant", Content: "old reply"},
	}
	db.readErr = errors.New("disk busy")
	s := newService(t, db)

	err := s.Remember(ctx, conversation("s1", "m1", "lost"), "x", time.Now())
	assert.ErrorContains(t, err, "disk busy")
	require.NoError(t, s.Record(ctx, conversation("s1", "m1", "new"), "answer"))
	assert.Empty(t, s.History("s1", "m1", true))

	db.mu.Lock()
	db.readErr = nil
	db.mu.Unlock()
	turns, err := s.PriorTurns(ctx, "s1", "m1", false)
	require.NoError(t, err)
	var got []string
	for _, tr := range turns {
		got = append(got, tr.Content)
	}
	assert.Equal(t, []string{"old", "old reply", "new", "answer"}, got)
}
