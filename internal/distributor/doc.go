// Package distributor schedules session requests onto registered nodes. It
// owns the node registry and the scheduling loop, and coordinates the
// backlog, the session directory, and the event bus. It is structured into
// small files by concern:
//
//   - distributor.go: core Distributor type, Node interface, constructor,
//     lifecycle (Close), scheduler kick.
//   - config.go: Config and package defaults; New applies defaults.
//   - registry.go: AddNode/RemoveNode/DrainNode/Heartbeat and the cached
//     per-node snapshots the scheduler works from.
//   - matcher.go: Matcher and Selector policies plus the defaults
//     (stereotype containment, least-loaded node).
//   - admission.go: NewSession entry point; validation and backlog wait.
//   - schedule.go: the scheduling loop; slot reservation, the unlocked node
//     call, commit/rollback.
//   - health.go: periodic health probes, failure counting, staleness.
//   - evict.go: node eviction and the cleanup that keeps registry,
//     directory, and listeners consistent.
//   - sessions.go: session queries and stops by id.
//   - status.go: aggregate status reporting.
//   - errors.go: error types and helpers (IsSessionNotCreated, ...).
//
// Scheduling never holds the registry lock across a node call: a slot is
// reserved under the lock, the create runs unlocked, and the result is
// committed or rolled back under the lock again. The queue resolves each
// request exactly once, so a placement that loses the race against a timeout
// stops its orphaned session instead of leaking it.
package distributor
