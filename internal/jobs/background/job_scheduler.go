package background

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"shoppinglist/internal/models"

	"github.com/go-co-op/gocron/v2"
)

const (
	snapshotJobName = "shopping-list-snapshot"
	snapshotTimeout = 2 * time.Minute
)

// SnapshotPublisher uploads an export of the current list.
type SnapshotPublisher interface {
	Publish(ctx context.Context, format string) (*models.ExportResult, error)
}

// JobScheduler runs the periodic background jobs
type JobScheduler struct {
	scheduler gocron.Scheduler
	publisher SnapshotPublisher
	format    string
	ctx       context.Context
	cancel    context.CancelFunc
	jobs      map[string]gocron.Job
	runs      int
	lastErr   error
	mu        sync.RWMutex
}

// NewJobScheduler registers the snapshot job to run every interval.
func NewJobScheduler(publisher SnapshotPublisher, interval time.Duration, format string) (*JobScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("snapshot interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		scheduler: scheduler,
		publisher: publisher,
		format:    format,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]gocron.Job),
	}

	snapshotJob, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(js.publishSnapshot),
		gocron.WithName(snapshotJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to create snapshot job: %w", err)
	}
	js.jobs[snapshotJobName] = snapshotJob

	log.Printf("Registered %d background jobs (snapshot every %s)", len(js.jobs), interval)
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

// Stop cancels in-flight jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) publishSnapshot() {
	ctx, cancel := context.WithTimeout(js.ctx, snapshotTimeout)
	defer cancel()

	result, err := js.publisher.Publish(ctx, js.format)

	js.mu.Lock()
	js.runs++
	js.lastErr = err
	js.mu.Unlock()

	if err != nil {
		log.Printf("WARN: snapshot export failed: %v", err)
		return
	}
	log.Printf("Snapshot exported to %s/%s", result.Bucket, result.ObjectKey)
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}

	status := map[string]interface{}{
		"total_jobs":    len(js.jobs),
		"jobs":          names,
		"snapshot_runs": js.runs,
	}
	if js.lastErr != nil {
		status["last_error"] = js.lastErr.Error()
	}
	return status
}
