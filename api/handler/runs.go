package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/chapterwatch/models"
	"github.com/use-agent/chapterwatch/tracker"
)

// Run job states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Executor performs a full run under the given ID.
type Executor interface {
	Execute(ctx context.Context, id string) (*tracker.Report, error)
}

// RunJob is the state of one asynchronous run.
type RunJob struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Report     *tracker.Report `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Runs serializes full runs. At most one run owns the store at a time;
// finished jobs are kept for retention.
type Runs struct {
	exec      Executor
	base      context.Context
	retention time.Duration

	mu     sync.Mutex
	active string
	jobs   map[string]*RunJob
	wg     sync.WaitGroup
}

// NewRuns creates the run registry. Runs execute under base, not under
// the request that started them.
func NewRuns(base context.Context, exec Executor) *Runs {
	return &Runs{
		exec:      exec,
		base:      base,
		retention: 24 * time.Hour,
		jobs:      make(map[string]*RunJob),
	}
}

// Active returns the ID of the run in progress, or "".
func (r *Runs) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start launches a run unless one is active.
func (r *Runs) Start() (RunJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" {
		return *r.jobs[r.active], false
	}
	r.evictLocked(time.Now())

	job := &RunJob{ID: uuid.NewString(), Status: RunRunning, StartedAt: time.Now()}
	r.jobs[job.ID] = job
	r.active = job.ID

	r.wg.Add(1)
	go r.execute(job.ID)
	return *job, true
}

func (r *Runs) execute(id string) {
	defer r.wg.Done()

	report, err := r.exec.Execute(r.base, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.jobs[id]
	now := time.Now()
	job.FinishedAt = &now
	job.Report = report
	job.Status = RunCompleted
	if err != nil {
		job.Status = RunFailed
		job.Error = err.Error()
		slog.Error("run failed", "run", id, "error", err)
	}
	r.active = ""
}

// Get returns a snapshot of a job.
func (r *Runs) Get(id string) (RunJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return RunJob{}, false
	}
	return *job, true
}

// Wait blocks until every started run has finished.
func (r *Runs) Wait() { r.wg.Wait() }

func (r *Runs) evictLocked(now time.Time) {
	for id, job := range r.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > r.retention {
			delete(r.jobs, id)
		}
	}
}

// PostRun returns a handler for POST /api/v1/runs.
func PostRun(runs *Runs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, started := runs.Start()
		if !started {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"run":     job,
				"error": models.ErrorDetail{
					Code:    models.ErrCodeRunInProgress,
					Message: "a run is already in progress",
				},
			})
			return
		}
		c.JSON(http.StatusAccepted, job)
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(runs *Runs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := runs.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "run not found", nil))
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
