package types

// Model is a registered model as listed by GET /api/models.
type Model struct {
	// Stable identifier for the model.
	// example: qwen3-0.6b
	ID string `json:"id" example:"qwen3-0.6b"`
	// Human-friendly name.
	// example: Qwen3 0.6B
	Name string `json:"name" example:"Qwen3 0.6B"`
	// Whether the stored weights are pre-quantized.
	// example: false
	IsQuantized bool `json:"is_quantized" example:"false"`
	// Whether the model is an uncensored variant.
	// example: false
	IsUncensored bool `json:"is_uncensored" example:"false"`
}

// ModelStorageStatus reports where a model's local copy lives.
type ModelStorageStatus struct {
	// example: qwen3-0.6b
	ModelID string `json:"model_id" example:"qwen3-0.6b"`
	// Storage status; only "ready" copies can be loaded.
	// example: ready
	Status string `json:"status" example:"ready"`
	// Percentage of the copy that is present.
	// example: 100
	Progress int `json:"progress" example:"100"`
	// Local directory holding the weights.
	// example: /home/user/models/qwen3-0.6b
	LocalPath string `json:"local_path,omitempty" example:"/home/user/models/qwen3-0.6b"`
}

// ModelLoadStatus is the load state of one model identifier.
type ModelLoadStatus struct {
	// example: qwen3-0.6b
	ID string `json:"id" example:"qwen3-0.6b"`
	// One of loading, ready, error.
	// example: ready
	Status string `json:"status" example:"ready"`
	// Failure detail when Status is error.
	Error string `json:"error,omitempty"`
}

// Capabilities describes the active model.
type Capabilities struct {
	// The model ships a native chat template.
	ChatTemplate bool `json:"chat_template"`
	// The chat template has reasoning scaffolding.
	Thinking bool `json:"thinking"`
}

// Session is a chat session.
type Session struct {
	// example: 0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10
	ID string `json:"id" example:"0b8f2c1e-3f7a-4c55-9a51-2f3c3c1d9e10"`
	// example: Trip planning
	Name string `json:"name" example:"Trip planning"`
	// Creation time (unix seconds).
	// example: 1700000000
	CreatedAt int64 `json:"created_at" example:"1700000000"`
}

// ChatMessage is one role-tagged message.
type ChatMessage struct {
	// example: user
	Role string `json:"role" example:"user"`
	// example: What is 2+2?
	Content string `json:"content" example:"What is 2+2?"`
}

// HistoryEntry is one message of a session's chat history.
type HistoryEntry struct {
	// Display name of the model the message was exchanged with.
	// example: Qwen3 0.6B
	Name    string      `json:"name" example:"Qwen3 0.6B"`
	Message ChatMessage `json:"message"`
	// RFC 3339 timestamp in server local time.
	// example: 2025-06-05T20:16:33-04:00
	Timestamp string `json:"timestamp" example:"2025-06-05T20:16:33-04:00"`
}
