// Package manager owns the lifecycle of the single resident synthesis model.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: lifecycle states and the Snapshot projection.
//   - errors.go: error types and helpers (IsModelLoadFailure, IsGenerationFailure).
//   - ensure.go: lazy loading of the model under the use-slot.
//   - admission.go: the single use-slot and the Lease handed to callers.
//   - evict.go: ForceEvict and the shared eviction path.
//   - idle.go: the idle watchdog (Run, EvictIfIdle).
//   - status_report.go: Status/Snapshot reporting helpers.
//   - sanity.go: checks for external binaries the service depends on.
//   - events.go, eventpub_*.go: lifecycle events and their publishers.
//
// Invariants:
//
//   - At most one model is resident. It is created only by the configured
//     loader and only while the use-slot is held.
//   - The use-slot is held for the whole generation call, so at most one
//     synthesis is in flight process-wide.
//   - Eviction (explicit or idle) takes the same slot and therefore never
//     runs while a lease is outstanding.
//
// External packages should use the public methods only (NewWithConfig,
// Acquire, Use, IsLoaded, ForceEvict, Run, Status).
package manager
