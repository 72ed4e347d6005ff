// package jobs implements a registry for tracked background work
//
// Jobs are submitted with a work function, run on their own goroutine, and
// expose monotonically advancing progress to pollers. The registry is sharded
// so unrelated jobs never contend on one lock.
package jobs

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nnaudify/audify/internal/shared"
)

// Kind identifies the type of work a job performs.
type Kind int

const (
	Download Kind = iota
	PlaylistImport
)

func (k Kind) String() string {
	switch k {
	case Download:
		return "download"
	case PlaylistImport:
		return "playlist_import"
	default:
		return "unknown"
	}
}

// State is a job's lifecycle position. Succeeded and Failed are terminal.
type State int

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Snapshot is a read-only copy of a job's state, safe to hand to pollers.
type Snapshot struct {
	ID         string
	Kind       Kind
	State      State
	Progress   float64
	Result     any
	Err        string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Work is the function a job executes. It receives the job's context, which
// is cancelled by [Tracker.Cancel], and a [Handle] for progress reporting.
// The returned value becomes the terminal snapshot's Result.
type Work func(ctx context.Context, h *Handle) (any, error)

// Handle is the worker-side view of a job. Only the goroutine executing the
// job's work function may use it.
type Handle struct {
	tracker *Tracker
	id      string
}

// SetProgress records a progress fraction in [0,1]. Values are clamped and
// regressions are ignored, so pollers always observe a non-decreasing series.
func (h *Handle) SetProgress(fraction float64) {
	h.tracker.setProgress(h.id, fraction)
}

type job struct {
	snap   Snapshot
	cancel context.CancelFunc
}

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

const shardCount = 16

// DefaultRetention is how long a terminal job's record is kept for pollers
// before it may be reaped.
const DefaultRetention = 10 * time.Minute

// Tracker is the owned job registry. All mutation happens through Submit and
// worker goroutines; pollers only read snapshots.
//
// Terminal records are retained for a fixed window and swept lazily on
// Submit and Poll; a reaped job is indistinguishable from one that never
// existed, and both report [shared.ErrJobNotFound].
type Tracker struct {
	shards    [shardCount]shard
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewTracker creates a tracker with the given terminal-record retention.
// A non-positive retention falls back to [DefaultRetention].
func NewTracker(retention time.Duration, logger *log.Logger) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	t := &Tracker{retention: retention, logger: logger, now: time.Now}
	for i := range t.shards {
		t.shards[i].jobs = make(map[string]*job)
	}
	return t
}

// Submit registers a new job and schedules its work on a background
// goroutine, returning the job id immediately.
func (t *Tracker) Submit(kind Kind, work Work) string {
	id := shared.GenerateID()
	ctx, cancel := context.WithCancel(context.Background())

	j := &job{
		snap: Snapshot{
			ID:        id,
			Kind:      kind,
			State:     Pending,
			CreatedAt: t.now(),
		},
		cancel: cancel,
	}

	s := t.shardFor(id)
	s.mu.Lock()
	t.sweepLocked(s)
	s.jobs[id] = j
	s.mu.Unlock()

	t.logger.Info("job submitted", "job_id", id, "kind", kind)

	go t.execute(ctx, id, work)
	return id
}

// Poll returns a copy of the job's current snapshot. After a terminal state
// the same snapshot is returned on every poll until the record is reaped.
// Unknown and reaped ids report [shared.ErrJobNotFound].
func (t *Tracker) Poll(id string) (Snapshot, error) {
	s := t.shardFor(id)
	s.mu.RLock()
	j, ok := s.jobs[id]
	var snap Snapshot
	if ok {
		snap = j.snap
	}
	s.mu.RUnlock()

	if !ok {
		return Snapshot{}, shared.ErrJobNotFound
	}

	if snap.State.Terminal() && t.now().Sub(snap.FinishedAt) > t.retention {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		return Snapshot{}, shared.ErrJobNotFound
	}

	return snap, nil
}

// Cancel requests best-effort cancellation of a running job. The job still
// reaches a terminal state through its worker; cancellation is observed at
// the work function's own checkpoints.
func (t *Tracker) Cancel(id string) error {
	s := t.shardFor(id)
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()

	if !ok {
		return shared.ErrJobNotFound
	}
	j.cancel()
	return nil
}

// execute runs a job's work function and records the terminal outcome.
func (t *Tracker) execute(ctx context.Context, id string, work Work) {
	t.transition(id, func(j *job) {
		j.snap.State = Running
	})

	result, err := work(ctx, &Handle{tracker: t, id: id})

	t.transition(id, func(j *job) {
		j.snap.FinishedAt = t.now()
		if err != nil {
			j.snap.State = Failed
			j.snap.Err = err.Error()
			return
		}
		j.snap.State = Succeeded
		j.snap.Progress = 1
		j.snap.Result = result
	})

	if err != nil {
		t.logger.Warn("job failed", "job_id", id, "error", err)
	} else {
		t.logger.Info("job succeeded", "job_id", id)
	}
}

func (t *Tracker) setProgress(id string, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	t.transition(id, func(j *job) {
		if j.snap.State.Terminal() || fraction <= j.snap.Progress {
			return
		}
		j.snap.Progress = fraction
	})
}

// transition applies fn to a job under its shard lock. The lock is held only
// for the duration of the update itself.
func (t *Tracker) transition(id string, fn func(*job)) {
	s := t.shardFor(id)
	s.mu.Lock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
	s.mu.Unlock()
}

// sweepLocked evicts terminal records older than the retention window.
// Caller holds the shard's write lock.
func (t *Tracker) sweepLocked(s *shard) {
	cutoff := t.now().Add(-t.retention)
	for id, j := range s.jobs {
		if j.snap.State.Terminal() && j.snap.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

func (t *Tracker) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &t.shards[h.Sum32()%shardCount]
}
