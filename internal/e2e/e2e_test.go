package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"modelhost/internal/manager"
	"modelhost/pkg/types"
)

func TestE2E_LoadInferSwitch(t *testing.T) {
	s := newStack(t, "echo", manager.ManagerConfig{})

	code, body := s.post(t, "/api/sessions", types.CreateSessionRequest{Name: "e2e"})
	if code != http.StatusCreated {
		t.Fatalf("create session: %d %s", code, body)
	}
	var sess types.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatal(err)
	}

	if code, _ := s.get(t, "/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load: %d", code)
	}
	if st := s.load(t, "alpha"); st.Status != string(manager.StateReady) {
		t.Fatalf("alpha: %+v", st)
	}
	if code, _ := s.get(t, "/readyz"); code != http.StatusOK {
		t.Fatalf("readyz after load: %d", code)
	}

	code, body = s.post(t, "/api/models/infer", types.InferRequest{ModelID: "alpha", Mode: "generate", Prompt: "Hello"})
	if code != http.StatusOK {
		t.Fatalf("generate: %d %s", code, body)
	}
	var out types.InferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Message != "echo: Hello" {
		t.Fatalf("generate reply=%q", out.Message)
	}

	code, body = s.post(t, "/api/models/infer", types.InferRequest{SessionID: sess.ID, ModelID: "alpha", Name: "Alpha", Prompt: "hi there"})
	if code != http.StatusOK {
		t.Fatalf("conversation: %d %s", code, body)
	}

	// Conversation turns are recorded after the reply is returned.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body = s.post(t, "/api/models/history", types.SessionCacheRequest{SessionID: sess.ID, ModelID: "alpha"})
		var hist types.HistoryResponse
		if err := json.Unmarshal(body, &hist); err != nil {
			t.Fatal(err)
		}
		if len(hist.Messages) == 2 {
			if hist.Messages[0].Message.Content != "hi there" || hist.Messages[0].Name != "Alpha" {
				t.Fatalf("history: %+v", hist.Messages)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history not recorded: %s", body)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if st := s.load(t, "beta"); st.Status != string(manager.StateReady) {
		t.Fatalf("beta: %+v", st)
	}
	code, body = s.post(t, "/api/models/infer", types.InferRequest{ModelID: "alpha", Mode: "generate", Prompt: "still there?"})
	if code != http.StatusConflict {
		t.Fatalf("superseded model: %d %s", code, body)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatal(err)
	}
	if e.ModelID != "alpha" {
		t.Fatalf("error body: %+v", e)
	}

	_, body = s.get(t, "/status")
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if st.ActiveModel != "beta" || st.PID == 0 || st.Precision != "4bit" {
		t.Fatalf("status: %+v", st)
	}
}

func TestE2E_UnknownModel(t *testing.T) {
	s := newStack(t, "echo", manager.ManagerConfig{})

	st := s.load(t, "ghost")
	if st.Status != string(manager.StateError) || !strings.Contains(st.Error, "ghost") {
		t.Fatalf("ghost: %+v", st)
	}
	if _, active := s.mgr.ActiveModel(); active {
		t.Fatalf("a worker was started for an unknown model")
	}
	code, _ := s.post(t, "/api/models/infer", types.InferRequest{ModelID: "ghost", Prompt: "hi"})
	if code != http.StatusConflict {
		t.Fatalf("infer ghost: %d", code)
	}
}

// TestE2E_Backpressure429 verifies that with one queue slot a request
// arriving while another is generating is rejected once MaxWait elapses.
func TestE2E_Backpressure429(t *testing.T) {
	s := newStack(t, "slow", manager.ManagerConfig{MaxQueueDepth: 1, MaxWait: 20 * time.Millisecond})
	if st := s.load(t, "alpha"); st.Status != string(manager.StateReady) {
		t.Fatalf("alpha: %+v", st)
	}

	var wg sync.WaitGroup
	first := make(chan int, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		code, _ := s.post(t, "/api/models/infer", types.InferRequest{ModelID: "alpha", Mode: "generate", Prompt: "slow"})
		first <- code
	}()

	// Wait until the first request holds the worker.
	deadline := time.Now().Add(5 * time.Second)
	for s.mgr.Status().Inflight == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first request never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	code, body := s.post(t, "/api/models/infer", types.InferRequest{ModelID: "alpha", Mode: "generate", Prompt: "second"})
	if code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %s", code, body)
	}
	wg.Wait()
	if c := <-first; c != http.StatusOK {
		t.Fatalf("first request: %d", c)
	}
}
