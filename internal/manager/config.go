package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultReadyTimeout  = 10 * time.Minute
	defaultInferTimeout  = 5 * time.Minute
	defaultDrainTimeout  = 30 * time.Second
	defaultExitTimeout   = 10 * time.Second

	// DefaultSystemPrompt frames qa and conversation prompts.
	DefaultSystemPrompt = "You are a helpful AI assistant."
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Locator  ModelLocator
	History  HistorySource // optional; nil means no prior turns
	Recorder Recorder      // optional; nil disables conversation recording
	// Spawner starts workers. Nil uses an ExecSpawner re-executing the
	// running binary.
	Spawner   Spawner
	Publisher EventPublisher
	Logger    *zerolog.Logger

	SystemPrompt  string
	MaxQueueDepth int
	MaxWait       time.Duration
	// ReadyTimeout bounds the wait for a worker's first message.
	ReadyTimeout time.Duration
	// InferTimeout bounds one prompt round trip.
	InferTimeout time.Duration
	// DrainTimeout bounds how long teardown waits for queued requests.
	DrainTimeout time.Duration
	// ExitTimeout bounds how long teardown waits for a worker to exit
	// after Exit before signalling it.
	ExitTimeout time.Duration
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	m := &Manager{
		statuses:     make(map[string]loadEntry),
		locator:      cfg.Locator,
		history:      cfg.History,
		recorder:     cfg.Recorder,
		spawner:      cfg.Spawner,
		publisher:    cfg.Publisher,
		log:          log,
		systemPrompt: cfg.SystemPrompt,
		maxWait:      orDuration(cfg.MaxWait, defaultMaxWait),
		readyTimeout: orDuration(cfg.ReadyTimeout, defaultReadyTimeout),
		inferTimeout: orDuration(cfg.InferTimeout, defaultInferTimeout),
		drainTimeout: orDuration(cfg.DrainTimeout, defaultDrainTimeout),
		exitTimeout:  orDuration(cfg.ExitTimeout, defaultExitTimeout),
		startTime:    time.Now(),
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if m.systemPrompt == "" {
		m.systemPrompt = DefaultSystemPrompt
	}
	if m.spawner == nil {
		m.spawner = &ExecSpawner{Logger: log}
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.baseCtx, m.cancel = context.WithCancel(context.Background())
	return m
}
