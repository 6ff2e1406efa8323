// Package checkpoint persists the creation time of the newest item that a
// sync run has fully written to disk.
//
// A checkpoint is a single timestamp serialized as "YYYY-MM-DD HH:MM:SS" in
// the canonical zone of a timeutil.Normalizer. Two backends exist:
//   - FileStore keeps the value in a plain text file, replaced atomically
//     through a temp file, fsync and rename.
//   - BoltStore keeps one value per album in a bbolt database.
//
// Read returns the normalizer's minimum when no value is stored, and an
// error wrapping ErrCorrupt when a stored value does not parse. Callers must
// not start a run after ErrCorrupt.
package checkpoint
