// Package manager owns the lifecycle of the single model worker process and
// dispatches prompts to it. It is structured into small files by concern:
//
//   - manager.go: core Manager type, status map, Close.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State, the worker handle and the collaborator interfaces.
//   - errors.go: typed errors (IsModelNotLoaded, IsInferenceError, IsTooBusy, ...).
//   - load.go, ops.go: synchronous Load and the queued RequestLoad.
//   - watcher.go: readiness watcher, one per load attempt.
//   - teardown.go: drain, Exit, then signal escalation.
//   - spawn.go: ExecSpawner, re-executing the binary as a worker.
//   - client.go: worker channel demux by correlation id.
//   - admission.go: per-worker FIFO queue and single in-flight slot.
//   - infer.go, payload.go: prompt shaping and the round trip.
//   - status_report.go: /status reporting.
//
// Load statuses are keyed by model id and tagged with the load attempt that
// wrote them; a superseded attempt never overwrites a newer one.
package manager
