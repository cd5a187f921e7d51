package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Handler processes a dequeued job. A non-nil error schedules a retry
// until the job's MaxRetries is exhausted.
type Handler func(ctx context.Context, job *Job) error

// Queue is a Redis-backed job queue with a fixed worker pool.
type Queue struct {
	client   *redis.Client
	log      *logrus.Logger
	handlers map[JobType]Handler

	workerCount int
	stopCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	running     bool
}

// NewQueue creates a queue backed by the given Redis client.
func NewQueue(client *redis.Client, workerCount int, log *logrus.Logger) *Queue {
	if workerCount <= 0 {
		workerCount = 2
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Queue{
		client:      client,
		log:         log,
		handlers:    make(map[JobType]Handler),
		workerCount: workerCount,
		stopCh:      make(chan struct{}),
	}
}

// RegisterHandler binds a handler to a job type. Must be called before Start.
func (q *Queue) RegisterHandler(jobType JobType, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Enqueue persists the job and pushes its ID onto the work list.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.Set(ctx, jobKeyPrefix+job.ID, data, jobRetentionTime).Err(); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	if err := q.client.RPush(ctx, queueKey, job.ID).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// EnqueueOptimization is a convenience wrapper that enqueues an
// optimization job and returns its ID.
func (q *Queue) EnqueueOptimization(ctx context.Context, payload OptimizationPayload) (string, error) {
	job := NewJob(JobTypeOptimization, payload.ToMap())
	if err := q.Enqueue(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// GetJob loads a job by ID. Returns nil without error when the job has
// expired or never existed.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Start launches the worker pool.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.mu.Unlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.log.WithField("workers", q.workerCount).Info("job queue started")
}

// Stop signals all workers and waits for them to drain.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Info("job queue stopped")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log := q.log.WithField("worker", id)

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		ctx := context.Background()
		res, err := q.client.BLMove(ctx, queueKey, processingKey, "LEFT", "RIGHT", 2*time.Second).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			log.WithError(err).Warn("dequeue failed")
			time.Sleep(time.Second)
			continue
		}

		q.processJob(ctx, log, res)
	}
}

func (q *Queue) processJob(ctx context.Context, log *logrus.Entry, jobID string) {
	defer q.client.LRem(ctx, processingKey, 1, jobID)

	job, err := q.GetJob(ctx, jobID)
	if err != nil || job == nil {
		log.WithField("job_id", jobID).Warn("job record missing, skipping")
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()
	if !ok {
		q.finishJob(ctx, job, fmt.Errorf("no handler for job type %s", job.Type))
		return
	}

	now := time.Now()
	job.Status = JobStatusProcessing
	job.StartedAt = &now
	q.saveJob(ctx, job)

	if err := handler(ctx, job); err != nil {
		job.RetryCount++
		if job.RetryCount < job.MaxRetries {
			log.WithError(err).WithFields(logrus.Fields{
				"job_id": job.ID,
				"retry":  job.RetryCount,
			}).Warn("job failed, requeueing")
			job.Status = JobStatusPending
			q.saveJob(ctx, job)
			q.client.RPush(ctx, queueKey, job.ID)
			return
		}
		q.finishJob(ctx, job, err)
		return
	}
	q.finishJob(ctx, job, nil)
}

func (q *Queue) finishJob(ctx context.Context, job *Job, jobErr error) {
	now := time.Now()
	job.CompletedAt = &now
	if jobErr != nil {
		job.Status = JobStatusFailed
		job.ErrorMsg = jobErr.Error()
		q.log.WithError(jobErr).WithField("job_id", job.ID).Error("job failed permanently")
	} else {
		job.Status = JobStatusCompleted
	}
	q.saveJob(ctx, job)
}

func (q *Queue) saveJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		q.log.WithError(err).WithField("job_id", job.ID).Error("marshal job state")
		return
	}
	if err := q.client.Set(ctx, jobKeyPrefix+job.ID, data, jobRetentionTime).Err(); err != nil {
		q.log.WithError(err).WithField("job_id", job.ID).Warn("persist job state")
	}
}
