package syncer

import "time"

// Summary reports what a run did
type Summary struct {
	Album     string
	OutputDir string

	// Observed counts items pulled from the listing, stale ones included.
	Observed   int
	Skipped    int
	Downloaded int
	Failed     int
	// NotStarted counts items pulled but abandoned after a failure.
	NotStarted int
	Bytes      int64

	CheckpointBefore  time.Time
	CheckpointAfter   time.Time
	CheckpointWritten bool

	StartedAt time.Time
	Duration  time.Duration
}

// Fields returns the summary as structured log fields
func (s *Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"album":              s.Album,
		"observed":           s.Observed,
		"skipped":            s.Skipped,
		"downloaded":         s.Downloaded,
		"failed":             s.Failed,
		"not_started":        s.NotStarted,
		"bytes":              s.Bytes,
		"checkpoint_before":  s.CheckpointBefore,
		"checkpoint_after":   s.CheckpointAfter,
		"checkpoint_written": s.CheckpointWritten,
		"duration":           s.Duration,
	}
}
