package manager

import (
	"errors"
	"net/http"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(modelID string) error { return tooBusyError{modelID: modelID} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// modelNotFoundError is returned when a model has no usable local copy.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id without stored weights.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// modelNotLoadedError is the normal answer to a prompt for a model that is
// not the active, ready model. It is not a server fault.
type modelNotLoadedError struct{ id string }

func (e modelNotLoadedError) Error() string { return "model not loaded: " + e.id }

func (e modelNotLoadedError) StatusCode() int { return http.StatusConflict }

// ErrModelNotLoaded constructs a modelNotLoadedError.
func ErrModelNotLoaded(id string) error { return modelNotLoadedError{id: id} }

// IsModelNotLoaded reports whether err means the model is not loaded.
func IsModelNotLoaded(err error) bool {
	var e modelNotLoadedError
	return errors.As(err, &e)
}

// InferenceError is a failed generation: the worker replied with an error
// or the channel to it broke.
type InferenceError struct {
	ModelID string
	Message string
}

func (e *InferenceError) Error() string { return "inference failed for " + e.ModelID + ": " + e.Message }

func (e *InferenceError) StatusCode() int { return http.StatusBadGateway }

// IsInferenceError reports whether err is an *InferenceError.
func IsInferenceError(err error) bool {
	var e *InferenceError
	return errors.As(err, &e)
}

// badRequestError rejects malformed requests before any worker I/O.
type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func (e badRequestError) StatusCode() int { return http.StatusBadRequest }

// IsBadRequest reports whether err is a request validation failure.
func IsBadRequest(err error) bool {
	var e badRequestError
	return errors.As(err, &e)
}

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("manager closed")
