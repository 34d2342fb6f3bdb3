// Package session implements the per-cycle mutation coordinator: an
// append-only mutation log, current-state reads, and the fold that
// derives each entity's next branch from its mutation subsequence.
//
// A Session is opened against an immutable root state and moves
// through exactly two phases. While open it accepts validated
// mutations and serves both current-state reads and next-state folds.
// Finalize seals it: after that, only next states computed before
// sealing remain readable and every append fails with
// SessionClosedError. A new cycle means a new Session against the
// root the previous one produced.
//
// A Session and its log are owned by one goroutine at a time. Nothing
// here locks; hosting code that wants concurrent cycles opens one
// Session per cycle against distinct root snapshots.
package session
