// Package syncer drives one incremental sync run: it reads the checkpoint,
// walks the album newest first, downloads items that are not older than the
// checkpoint and writes back the newest creation time it committed.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"photosync/internal/downloader"
	"photosync/pkg/checkpoint"
	"photosync/pkg/logger"
	"photosync/pkg/storage"
	"photosync/pkg/timeutil"
)

// EventKind classifies per-item progress events
type EventKind int

const (
	EventSkipped EventKind = iota
	EventDownloaded
	EventFailed
)

// Event reports progress on a single item
type Event struct {
	Kind EventKind
	Item Item
	File *storage.LocalFile
	Err  error
}

// Options configures a run
type Options struct {
	Album     string
	OutputDir string
	// Limit caps how many items are pulled from the listing; 0 means no cap.
	Limit int
	// Workers is the number of parallel downloads; values below 1 mean 1.
	Workers int
	// StopAtCheckpoint ends the scan at the first item older than the
	// checkpoint. Only safe when the listing is strictly newest first.
	StopAtCheckpoint bool
	// OnEvent, when set, is called for every skipped, downloaded or failed item.
	// Calls are serialized.
	OnEvent func(Event)
}

// Syncer runs incremental syncs from a Source into a local directory
type Syncer struct {
	source Source
	store  checkpoint.Store
	norm   *timeutil.Normalizer
	logger logger.Logger
}

// New creates a Syncer. The caller owns store and closes it after the run.
func New(source Source, store checkpoint.Store, norm *timeutil.Normalizer, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Syncer{source: source, store: store, norm: norm, logger: log}
}

// tracker holds the state shared between the listing loop and the result
// collector.
type tracker struct {
	mu       sync.Mutex
	observed bool
	maxSeen  time.Time
	onEvent  func(Event)
}

func (t *tracker) observe() {
	t.mu.Lock()
	t.observed = true
	t.mu.Unlock()
}

func (t *tracker) advance(ts time.Time) {
	t.mu.Lock()
	if ts.After(t.maxSeen) {
		t.maxSeen = ts
	}
	t.mu.Unlock()
}

func (t *tracker) snapshot() (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observed, t.maxSeen
}

func (t *tracker) emit(ev Event) {
	if t.onEvent == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvent(ev)
}

// Run performs one sync. A checkpoint read failure (including
// checkpoint.ErrCorrupt) returns before anything is downloaded or written.
// Otherwise, once at least one item has been pulled from the listing, the
// checkpoint is written exactly once on every exit path with the later of its
// starting value and the newest creation time that was fully materialized.
// The first listing, download or write failure ends the run.
func (s *Syncer) Run(ctx context.Context, opts Options) (summary *Summary, err error) {
	if opts.Album == "" {
		return nil, errors.New("album is required")
	}

	startedAt := time.Now()
	log := s.logger.WithField("album", opts.Album)

	checkpointAtStart, err := s.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	summary = &Summary{
		Album:            opts.Album,
		OutputDir:        opts.OutputDir,
		CheckpointBefore: checkpointAtStart,
		CheckpointAfter:  checkpointAtStart,
		StartedAt:        startedAt,
	}
	state := &tracker{maxSeen: s.norm.Min(), onEvent: opts.OnEvent}

	// Registered first so it runs last, after the pool has drained.
	defer func() {
		summary.Duration = time.Since(startedAt)
		if werr := s.flush(ctx, state, checkpointAtStart, summary); werr != nil {
			err = errors.Join(err, werr)
		}
	}()

	files, err := storage.NewManager(opts.OutputDir)
	if err != nil {
		return summary, err
	}
	files.SetLogger(log)
	if _, perr := files.RemoveStalePartials(); perr != nil {
		log.WithError(perr).Warn("Failed to remove partial downloads")
	}

	logger.LogComponentStart(log, "syncer", map[string]interface{}{
		"output_dir": opts.OutputDir,
		"limit":      opts.Limit,
		"workers":    opts.Workers,
		"checkpoint": s.norm.Format(checkpointAtStart),
	})

	pool := downloader.NewWorkerPool(ctx, opts.Workers, files, log)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for r := range pool.Results() {
			s.collect(r, state, summary)
		}
	}()
	pool.Start()

	poolStopped := false
	stopPool := func() {
		if !poolStopped {
			poolStopped = true
			pool.Stop()
			<-collected
		}
	}
	defer stopPool()

	refused, runErr := s.scan(ctx, opts, checkpointAtStart, pool, state, summary, log)

	stopPool()
	if refused {
		summary.NotStarted++
	}
	if runErr == nil {
		runErr = pool.Err()
	}
	if runErr != nil {
		log.WithError(runErr).ErrorWithFields("Sync aborted", summary.Fields())
		return summary, runErr
	}

	logger.LogComponentStop(log, "syncer", "completed")
	return summary, nil
}

// scan walks the listing and submits jobs until it is exhausted, the limit is
// reached or the pool stops. refused reports an item that was pulled but not
// accepted because the pool had already stopped.
func (s *Syncer) scan(
	ctx context.Context,
	opts Options,
	checkpointAtStart time.Time,
	pool *downloader.WorkerPool,
	state *tracker,
	summary *Summary,
	log logger.Logger,
) (refused bool, err error) {
	iter, err := s.source.List(ctx, opts.Album)
	if err != nil {
		return false, fmt.Errorf("failed to list album %q: %w", opts.Album, err)
	}
	defer iter.Close()

	for seq := 0; opts.Limit <= 0 || seq < opts.Limit; seq++ {
		if pool.Stopped() {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		item, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to list album %q: %w", opts.Album, err)
		}

		state.observe()
		summary.Observed++

		createdAt, nerr := s.norm.Normalize(item.CreatedAt())
		haveTime := nerr == nil
		if !haveTime {
			// Never skip content because its time is unknown.
			log.WithError(nerr).WarnWithFields("Creation time unusable, downloading without it", map[string]interface{}{
				"item_id": item.ID(),
			})
		}

		if haveTime && createdAt.Before(checkpointAtStart) {
			summary.Skipped++
			logger.LogSkipped(log, item.ID(), createdAt, checkpointAtStart)
			state.emit(Event{Kind: EventSkipped, Item: item})
			if opts.StopAtCheckpoint {
				return false, nil
			}
			continue
		}

		job := downloader.Job{Seq: seq, Item: item, CreatedAt: createdAt, HaveTime: haveTime}
		if err := pool.Submit(job); err != nil {
			return true, nil
		}
	}
	return false, nil
}

// collect folds one pool result into the run state
func (s *Syncer) collect(r downloader.Result, state *tracker, summary *Summary) {
	item, _ := r.Job.Item.(Item)

	switch {
	case r.Skipped:
		summary.NotStarted++
	case r.Error != nil:
		summary.Failed++
		state.emit(Event{Kind: EventFailed, Item: item, Err: r.Error})
	default:
		summary.Downloaded++
		summary.Bytes += r.File.Size
		if r.Job.HaveTime {
			state.advance(r.Job.CreatedAt)
		}
		state.emit(Event{Kind: EventDownloaded, Item: item, File: r.File})
	}
}

// flush writes the final checkpoint if the run observed any item
func (s *Syncer) flush(ctx context.Context, state *tracker, checkpointAtStart time.Time, summary *Summary) error {
	observed, maxSeen := state.snapshot()
	if !observed {
		return nil
	}

	final := checkpointAtStart
	if maxSeen.After(final) {
		final = maxSeen
	}

	// A cancelled run still records its progress.
	if err := s.store.Write(context.WithoutCancel(ctx), final); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	summary.CheckpointAfter = final
	summary.CheckpointWritten = true
	s.logger.InfoWithFields("Checkpoint updated", map[string]interface{}{
		"album":      summary.Album,
		"checkpoint": s.norm.Format(final),
	})
	return nil
}
