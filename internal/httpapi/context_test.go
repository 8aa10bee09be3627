package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	// nolint:staticcheck // SA1012: nil is the documented reset
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatalf("base context not reset")
	}
}

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	for _, first := range []string{"a", "b"} {
		a, ac := context.WithCancel(context.Background())
		b, bc := context.WithCancel(context.Background())
		j, cancelJ := joinContexts(a, b)
		if first == "a" {
			ac()
		} else {
			bc()
		}
		select {
		case <-j.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("joined context did not cancel when %s was canceled", first)
		}
		cancelJ()
		ac()
		bc()
	}
}

func TestJoinContexts_CarriesCauseAndValues(t *testing.T) {
	type key struct{}
	shutdown := errors.New("shutting down")
	a, ac := context.WithCancelCause(context.Background())
	b := context.WithValue(context.Background(), key{}, "req")
	j, cancel := joinContexts(a, b)
	defer cancel()
	if j.Value(key{}) != "req" {
		t.Fatalf("request values lost")
	}
	ac(shutdown)
	<-j.Done()
	if !errors.Is(context.Cause(j), shutdown) {
		t.Fatalf("cause=%v", context.Cause(j))
	}
}

func TestJoinContexts_CancelReleases(t *testing.T) {
	a, ac := context.WithCancel(context.Background())
	defer ac()
	j, cancel := joinContexts(a, context.Background())
	cancel()
	if j.Err() == nil {
		t.Fatalf("cancel did not cancel joined context")
	}
}
