package types

// InferRequest represents an inference request payload.
type InferRequest struct {
	// Chat session the prompt belongs to. Required for conversation mode.
	// example: 0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10
	SessionID string `json:"session_id" example:"0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10"`
	// Model the prompt is addressed to; must be the active model.
	// example: qwen3-0.6b
	ModelID string `json:"model_id" example:"qwen3-0.6b"`
	// Display name of the model, stored alongside history.
	// example: Qwen3 0.6B
	Name string `json:"name" example:"Qwen3 0.6B"`
	// Required prompt text.
	// example: What is 2+2?
	Prompt string `json:"prompt" example:"What is 2+2?"`
	// Maximum number of new tokens to generate.
	// example: 256
	MaxNewTokens int `json:"max_new_tokens" example:"256"`
	// One of conversation, qa, generate. Empty means conversation.
	// example: conversation
	Mode string `json:"mode" example:"conversation"`
	// Whether history from other models of the same session is included.
	// example: false
	ShareContext bool `json:"share_context" example:"false"`
}

// InferResponse carries the generated text.
type InferResponse struct {
	// example: 2+2 is 4.
	Message string `json:"message" example:"2+2 is 4."`
}

// ModelsResponse wraps the list of models returned by GET /api/models.
type ModelsResponse struct {
	// List of registered models.
	Models []Model `json:"models"`
}

// RegisterModelRequest registers a model whose weights are already on disk.
type RegisterModelRequest struct {
	// example: qwen3-0.6b
	ModelID string `json:"model_id" example:"qwen3-0.6b"`
	// example: Qwen3 0.6B
	ModelName string `json:"model_name" example:"Qwen3 0.6B"`
	// Directory holding the .gguf weights and optional chat template.
	// example: /home/user/models/qwen3-0.6b
	LocalPath    string `json:"local_path" example:"/home/user/models/qwen3-0.6b"`
	IsQuantized  bool   `json:"is_quantized"`
	IsUncensored bool   `json:"is_uncensored"`
}

// DeleteModelRequest removes a registered model.
type DeleteModelRequest struct {
	// example: qwen3-0.6b
	ModelID string `json:"model_id" example:"qwen3-0.6b"`
}

// ModelStorageStatusResponse is returned by GET /api/models/status.
type ModelStorageStatusResponse struct {
	Models []ModelStorageStatus `json:"models"`
}

// LoadModelRequest asks for a model to become the active model.
type LoadModelRequest struct {
	// example: qwen3-0.6b
	ModelID string `json:"model_id" example:"qwen3-0.6b"`
	// One of standard (or empty), 8bit, 4bit.
	// example: 4bit
	Precision string `json:"precision" example:"4bit"`
}

// LoadModelResponse acknowledges a load request.
type LoadModelResponse struct {
	// example: qwen3-0.6b
	ModelID string `json:"model_id" example:"qwen3-0.6b"`
	// Always "loading"; poll /api/models/load/status for the outcome.
	// example: loading
	Status string `json:"status" example:"loading"`
	// Identifier of the background load operation.
	// example: op-3
	OpID string `json:"op_id" example:"op-3"`
}

// SessionCacheRequest addresses the cached history of a session.
type SessionCacheRequest struct {
	// example: 0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10
	SessionID string `json:"session_id" example:"0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10"`
	// example: qwen3-0.6b
	ModelID string `json:"model_id" example:"qwen3-0.6b"`
	// When true the whole session is addressed, not only ModelID's turns.
	ShareContext bool `json:"share_context"`
}

// HistoryResponse is returned by POST /api/models/history.
type HistoryResponse struct {
	Messages []HistoryEntry `json:"messages"`
}

// CreateSessionRequest creates a chat session.
type CreateSessionRequest struct {
	// example: Trip planning
	Name string `json:"name" example:"Trip planning"`
}

// SessionsResponse lists chat sessions.
type SessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

// LoadSessionRequest warms the history cache of a session.
type LoadSessionRequest struct {
	// example: 0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10
	ID string `json:"id" example:"0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10"`
}

// MessageResponse acknowledges a request that returns no data.
type MessageResponse struct {
	// example: Session cache cleared successfully
	Message string `json:"message" example:"Session cache cleared successfully"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Model the failure relates to, when there is one.
	// example: qwen3-0.6b
	ModelID string `json:"model_id,omitempty" example:"qwen3-0.6b"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Identifier of the active model, empty when no worker is running.
	// example: qwen3-0.6b
	ActiveModel string `json:"active_model,omitempty" example:"qwen3-0.6b"`
	// Load state of the active model.
	// example: ready
	State string `json:"state,omitempty" example:"ready"`
	// Process ID of the worker.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Precision the active model was loaded with.
	// example: 4bit
	Precision string `json:"precision,omitempty" example:"4bit"`
	// Capabilities reported by the worker once ready.
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	// True while the worker is being torn down.
	Draining bool `json:"draining,omitempty"`
	// Requests waiting for the worker.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Requests currently being served.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Load state of every model identifier seen so far.
	Loads []ModelLoadStatus `json:"loads"`
	// Total number of load attempts.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Last load or worker error observed by the manager.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
