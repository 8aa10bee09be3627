// Package worker is the body of a model worker process: it loads exactly one
// model, announces readiness over its channel end, then answers prompts one
// at a time until told to exit or the channel breaks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"modelhost/internal/ipc"
	"modelhost/internal/modelrt"
)

// Options configures Run.
type Options struct {
	ModelID   string
	Dir       string
	Precision modelrt.Precision
	Loader    modelrt.Loader
	Conn      *ipc.Conn
	Logger    zerolog.Logger
}

// LoadError is returned by Run when the model could not be loaded. The
// failure has already been reported to the controller.
type LoadError struct {
	ModelID string
	Err     error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load model %s: %v", e.ModelID, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// Reject reports a load that cannot even start as an Error message, closes
// conn and returns the *LoadError it sent.
func Reject(conn *ipc.Conn, modelID string, err error) error {
	lerr := &LoadError{ModelID: modelID, Err: err}
	_ = conn.Send(ipc.Error{Detail: lerr.Error()})
	_ = conn.Close()
	return lerr
}

// Run loads the model and serves prompts. It always closes opts.Conn and
// releases the model before returning. A clean Exit, end of input or a
// canceled ctx all return nil.
func Run(ctx context.Context, opts Options) error {
	log := opts.Logger.With().Str("model", opts.ModelID).Logger()
	conn := opts.Conn
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	start := time.Now()
	log.Info().Str("event", "load_start").Str("dir", opts.Dir).Str("precision", opts.Precision.String()).Msg("worker")
	model, err := opts.Loader.Load(ctx, opts.Dir, opts.Precision)
	if err != nil {
		lerr := &LoadError{ModelID: opts.ModelID, Err: err}
		log.Error().Str("event", "load_error").Err(err).Msg("worker")
		_ = conn.Send(ipc.Error{Detail: lerr.Error()})
		return lerr
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("release model")
		}
		log.Info().Str("event", "released").Msg("worker")
	}()

	caps := model.Capabilities()
	if err := conn.Send(ipc.Ready{Capabilities: caps}); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}
	log.Info().Str("event", "ready").Bool("chat_template", caps.ChatTemplate).Bool("thinking", caps.Thinking).
		Dur("load", time.Since(start)).Msg("worker")

	s := &server{modelID: opts.ModelID, model: model, caps: caps, conn: conn, log: log}
	return s.serve(ctx)
}

type server struct {
	modelID string
	model   modelrt.Model
	caps    ipc.Capabilities
	conn    *ipc.Conn
	log     zerolog.Logger
}

func (s *server) serve(ctx context.Context) error {
	for {
		msg, err := s.conn.Recv()
		if err != nil {
			var ute ipc.UnknownTagError
			switch {
			case errors.Is(err, io.EOF), ctx.Err() != nil:
				s.log.Info().Str("event", "channel_closed").Msg("worker")
				return nil
			case errors.As(err, &ute):
				s.log.Warn().Str("event", "exit").Str("tag", string(ute.Tag)).Msg("worker")
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		p, ok := msg.(ipc.Prompt)
		if !ok {
			s.log.Info().Str("event", "exit").Str("tag", string(msg.Tag())).Msg("worker")
			return nil
		}
		if err := s.conn.Send(s.handle(ctx, p)); err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
	}
}

// handle runs one prompt. Failures of any kind become an Error reply so the
// loop keeps going.
func (s *server) handle(ctx context.Context, p ipc.Prompt) (reply ipc.Message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("id", p.ID).Interface("panic", r).Msg("generation panicked")
			reply = ipc.Error{ID: p.ID, Detail: fmt.Sprintf("model %s: panic: %v", s.modelID, r)}
		}
	}()
	text, err := Generate(ctx, s.model, s.caps, p.Payload)
	if err != nil {
		s.log.Warn().Str("id", p.ID).Str("mode", string(p.Payload.Mode)).Err(err).Msg("generation failed")
		return ipc.Error{ID: p.ID, Detail: fmt.Sprintf("model %s: %v", s.modelID, err)}
	}
	s.log.Debug().Str("id", p.ID).Str("mode", string(p.Payload.Mode)).Int("chars", len(text)).
		Dur("dur", time.Since(start)).Msg("generation done")
	return ipc.Result{ID: p.ID, Text: text}
}
