package manager

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"modelhost/internal/ipc"
)

const stderrTailBytes = 4096

// ExecSpawner starts workers as child processes. The child speaks the
// channel protocol on its stdin/stdout; its stderr is forwarded to the log.
type ExecSpawner struct {
	// Command is the argv prefix of the worker; the worker flags are
	// appended. Empty means the running executable with "worker".
	Command []string
	// Args are appended after the worker flags.
	Args []string
	// Env is added to the inherited environment.
	Env    []string
	Logger zerolog.Logger
}

var _ Spawner = (*ExecSpawner)(nil)

func (s *ExecSpawner) command() ([]string, error) {
	if len(s.Command) > 0 {
		return s.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return []string{exe, "worker"}, nil
}

// Spawn starts the worker for spec. ctx only bounds the start itself; the
// worker outlives it and is stopped through the returned Process.
func (s *ExecSpawner) Spawn(ctx context.Context, spec WorkerSpec) (Process, *ipc.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	argv, err := s.command()
	if err != nil {
		return nil, nil, err
	}
	args := append([]string{}, argv[1:]...)
	args = append(args,
		"--model-id", spec.ModelID,
		"--model-dir", spec.Dir,
		"--precision", spec.Precision.String(),
	)
	args = append(args, s.Args...)

	cmd := exec.Command(argv[0], args...)
	cmd.Env = append(os.Environ(), s.Env...)

	// Own the pipes so Wait never closes the read end under the reader.
	childIn, parentOut, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	parentIn, childOut, err := os.Pipe()
	if err != nil {
		_ = childIn.Close()
		_ = parentOut.Close()
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &stderrLog{log: s.Logger.With().Str("model", spec.ModelID).Logger()}
	cmd.Stdin = childIn
	cmd.Stdout = childOut
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{childIn, parentOut, parentIn, childOut} {
			_ = f.Close()
		}
		return nil, nil, fmt.Errorf("start worker: %w", err)
	}
	_ = childIn.Close()
	_ = childOut.Close()

	p := &execProcess{cmd: cmd, stderr: stderr, done: make(chan struct{})}
	// Early-exit watcher
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	s.Logger.Info().Str("event", "spawn").Str("model", spec.ModelID).Int("pid", cmd.Process.Pid).Str("dir", spec.Dir).Msg("worker")
	return p, ipc.NewConn(parentIn, parentOut, parentOut, parentIn), nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr *stderrLog
	done   chan struct{}
	err    error
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Err() error {
	<-p.done
	return p.err
}

// StderrTail returns the last bytes the worker wrote to stderr.
func (p *execProcess) StderrTail() string { return p.stderr.Tail() }

// stderrLog forwards worker stderr to the log line by line and keeps a
// short tail for failure messages.
type stderrLog struct {
	log zerolog.Logger

	mu   sync.Mutex
	line []byte
	tail []byte
}

func (w *stderrLog) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tail = append(w.tail, b...)
	if len(w.tail) > stderrTailBytes {
		w.tail = w.tail[len(w.tail)-stderrTailBytes:]
	}
	w.line = append(w.line, b...)
	for {
		i := bytes.IndexByte(w.line, '\n')
		if i < 0 {
			break
		}
		if l := bytes.TrimSpace(w.line[:i]); len(l) > 0 {
			w.log.Debug().Str("stream", "stderr").Msg(string(l))
		}
		w.line = w.line[i+1:]
	}
	if len(w.line) > stderrTailBytes {
		w.log.Debug().Str("stream", "stderr").Msg(string(w.line))
		w.line = w.line[:0]
	}
	return len(b), nil
}

func (w *stderrLog) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(bytes.TrimSpace(w.tail))
}
