package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
	"social_metrics/internal/provider"
)

// DeactivationReason is attached to the notification fired when a profile
// exceeds the consecutive-failure threshold.
const DeactivationReason = "consecutive_failures"

// ErrQueueFull rejects new work when the pending queue is at capacity.
// Requeued retries are exempt; they re-enter regardless of the bound.
var ErrQueueFull = errors.New("job queue full")

// Scheduler owns the extraction job queue and a fixed pool of workers. Each
// worker runs one job end to end: cache lookup, rate-limit acquire, provider
// call, ingestion. The scheduler is the only component that mutates a job
// after creation; terminal states are never transitioned again.
type Scheduler struct {
	profiles  ProfileStore
	campaigns CampaignStore
	jobs      JobStore
	cache     Cache
	limiter   Limiter
	registry  AdapterRegistry
	ingestor  Ingestor
	notifier  Notifier
	logger    *slog.Logger
	cfg       config.SchedulerConfig
	retry     RetryPolicy

	queue  *jobQueue
	workCh chan *domain.ExtractionJob

	mu      sync.Mutex
	running map[string]*runningJob

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// runningJob tracks a cooperative cancellation request. The flag is checked
// between records; the in-flight provider call is never torn down.
type runningJob struct {
	cancelled atomic.Bool
}

func New(
	profiles ProfileStore,
	campaigns CampaignStore,
	jobs JobStore,
	cache Cache,
	limiter Limiter,
	registry AdapterRegistry,
	ingestor Ingestor,
	notifier Notifier,
	logger *slog.Logger,
	cfg config.SchedulerConfig,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		profiles:  profiles,
		campaigns: campaigns,
		jobs:      jobs,
		cache:     cache,
		limiter:   limiter,
		registry:  registry,
		ingestor:  ingestor,
		notifier:  notifier,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		retry: RetryPolicy{
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			MaxAttempts:    cfg.MaxAttempts,
			Jitter:         cfg.BackoffJitter,
		},
		queue:   newJobQueue(),
		workCh:  make(chan *domain.ExtractionJob),
		running: make(map[string]*runningJob),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start reloads persisted pending jobs, then launches the dispatcher, the
// worker pool, and the retention sweeper.
func (s *Scheduler) Start() {
	s.recoverPending()

	s.wg.Add(1)
	go s.dispatchLoop()

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go s.purgeLoop()

	s.logger.Info("scheduler started",
		"workers", s.cfg.Workers,
		"max_attempts", s.cfg.MaxAttempts,
	)
}

// recoverPending re-queues jobs that were persisted as pending before a
// restart, so stored state survives the in-memory queue.
func (s *Scheduler) recoverPending() {
	jobs, err := s.jobs.ListPending(s.ctx)
	if err != nil {
		s.logger.Error("failed to recover pending jobs", "error", err)
		return
	}

	for i := range jobs {
		s.queue.Push(&jobs[i], s.now())
	}
	if len(jobs) > 0 {
		s.logger.Info("recovered pending jobs", "count", len(jobs))
	}
}

// Stop cancels all work and waits for workers to drain.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Enqueue creates a pending extraction job for one profile and makes it
// visible for dispatch immediately.
func (s *Scheduler) Enqueue(ctx context.Context, profileID string, kind domain.JobKind) (*domain.ExtractionJob, error) {
	if s.cfg.QueueSize > 0 && s.queue.Len() >= s.cfg.QueueSize {
		return nil, ErrQueueFull
	}

	prof, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	job := &domain.ExtractionJob{
		ID:         uuid.NewString(),
		ProfileID:  prof.ID,
		CampaignID: prof.CampaignID,
		Kind:       kind,
		State:      domain.JobStatePending,
		EnqueuedAt: s.now().UTC(),
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	s.queue.Push(job, job.EnqueuedAt)

	s.logger.Debug("job enqueued",
		"job_id", job.ID,
		"profile_id", prof.ID,
		"kind", kind,
	)

	return job, nil
}

// EnqueueCampaign schedules one job per monitored profile in the campaign.
// This is the entry point the external cron trigger calls.
func (s *Scheduler) EnqueueCampaign(ctx context.Context, campaignID string, kind domain.JobKind) ([]*domain.ExtractionJob, error) {
	profs, err := s.profiles.ListMonitored(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	jobs := make([]*domain.ExtractionJob, 0, len(profs))
	for i := range profs {
		job, err := s.Enqueue(ctx, profs[i].ID, kind)
		if err != nil {
			s.logger.Warn("failed to enqueue profile",
				"campaign_id", campaignID,
				"profile_id", profs[i].ID,
				"error", err,
			)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Cancel requests cancellation of a job. Pending jobs are removed from the
// queue; running jobs are abandoned cooperatively at the next record
// boundary, letting the current provider call finish.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	if job := s.queue.Remove(jobID); job != nil {
		return s.finishCancelled(ctx, job)
	}

	s.mu.Lock()
	run, ok := s.running[jobID]
	s.mu.Unlock()
	if ok {
		run.cancelled.Store(true)
		return nil
	}

	return fmt.Errorf("job %s is not pending or running", jobID)
}

// QueueLen reports how many jobs are waiting for dispatch.
func (s *Scheduler) QueueLen() int {
	return s.queue.Len()
}

// dispatchLoop feeds workers in earliest-eligible-time order, sleeping until
// the head of the queue becomes due.
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	for {
		job := s.queue.PopEligible(s.now())
		if job != nil {
			select {
			case s.workCh <- job:
				continue
			case <-s.ctx.Done():
				return
			}
		}

		eligibleAt, ok := s.queue.Peek()
		if !ok {
			select {
			case <-s.queue.Wake():
			case <-s.ctx.Done():
				return
			}
			continue
		}

		timer := time.NewTimer(eligibleAt.Sub(s.now()))
		select {
		case <-timer.C:
		case <-s.queue.Wake():
			timer.Stop()
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.workCh:
			s.executeJob(job)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) purgeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := s.now().Add(-s.cfg.JobRetention)
			deleted, err := s.jobs.DeleteOlderThan(s.ctx, cutoff)
			if err != nil {
				s.logger.Warn("job retention sweep failed", "error", err)
			} else if deleted > 0 {
				s.logger.Info("purged archived jobs", "count", deleted)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// executeJob runs the full Pending -> Running -> terminal transition for one
// job. The rate-limit permit is held only while the provider call is in
// flight, never for queue wait or ingestion.
func (s *Scheduler) executeJob(job *domain.ExtractionJob) {
	ctx := s.ctx

	run := &runningJob{}

	s.mu.Lock()
	s.running[job.ID] = run
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, job.ID)
		s.mu.Unlock()
	}()

	startedAt := s.now().UTC()
	job.State = domain.JobStateRunning
	job.Attempts++
	job.StartedAt = &startedAt
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to mark job running", "job_id", job.ID, "error", err)
	}

	prof, err := s.profiles.Get(ctx, job.ProfileID)
	if err != nil {
		s.failJob(ctx, job, nil, domain.ErrorTransient, fmt.Errorf("load profile: %w", err))
		return
	}
	if !prof.IsActive || !prof.MonitoringEnabled {
		s.finishCancelledWithReason(ctx, job, "profile monitoring disabled")
		return
	}

	campaign, err := s.campaigns.Get(ctx, prof.CampaignID)
	if err != nil {
		s.failJob(ctx, job, prof, domain.ErrorTransient, fmt.Errorf("load campaign: %w", err))
		return
	}

	day := s.now().In(prof.Location(campaign.Timezone))
	windowKey := fmt.Sprintf("%s:%s", job.Kind, day.Format("2006-01-02"))

	if cached, ok := s.cache.Get(ctx, prof.ID, windowKey); ok {
		s.logger.Debug("cache hit, skipping provider call",
			"job_id", job.ID,
			"profile_id", prof.ID,
			"window", windowKey,
		)
		s.completeJob(ctx, job, prof, campaign, cached, nil)
		return
	}

	result, runID, err := s.extract(ctx, job, prof, campaign, run)
	if err != nil {
		if run.cancelled.Load() {
			s.finishCancelledWithReason(ctx, job, "cancelled by request")
			return
		}
		kind := domain.ClassifyError(err)
		s.failJob(ctx, job, prof, kind, err)
		return
	}
	if run.cancelled.Load() {
		s.finishCancelledWithReason(ctx, job, "cancelled by request")
		return
	}

	s.cache.Put(ctx, prof.ID, windowKey, result, campaign.MonitoringFrequency.CacheTTL())
	s.completeJob(ctx, job, prof, campaign, result, runID)
}

// extract acquires provider capacity, invokes the adapter, and drains the
// record stream, checking for cooperative cancellation between records.
func (s *Scheduler) extract(ctx context.Context, job *domain.ExtractionJob, prof *domain.SocialProfile, campaign *domain.Campaign, run *runningJob) (*domain.ExtractionResult, *string, error) {
	adapter, err := s.registry.Lookup(prof.Platform)
	if err != nil {
		return nil, nil, domain.NewExtractError(domain.ErrorNotFound, err)
	}

	permit, err := s.limiter.Acquire(ctx, string(prof.Platform))
	if err != nil {
		return nil, nil, err
	}
	defer s.limiter.Release(permit)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderCallTimeout)
	defer cancel()

	var since int64
	if job.Kind == domain.JobKindIncremental && prof.LastSuccessfulExtraction != nil {
		since = prof.LastSuccessfulExtraction.Unix()
	}

	extraction, err := adapter.Extract(callCtx, provider.ExtractRequest{
		Profile:          prof,
		Kind:             job.Kind,
		MaxPosts:         campaign.MaxPostsPerProfile,
		Since:            since,
		ExtractComments:  campaign.ExtractComments && job.Kind != domain.JobKindMetricsOnly,
		IncludeSentiment: campaign.SentimentAnalysis,
	})
	if err != nil {
		return nil, nil, err
	}
	defer extraction.Records.Close()

	var records []domain.RawRecord
	for extraction.Records.Next(callCtx) {
		records = append(records, *extraction.Records.Record())

		if run.cancelled.Load() {
			return nil, nil, domain.NewExtractError(domain.ErrorTransient, context.Canceled)
		}
	}
	if err := extraction.Records.Err(); err != nil {
		return nil, nil, err
	}

	result := &domain.ExtractionResult{
		ProfileID: prof.ID,
		Snapshot:  extraction.Snapshot,
		Records:   records,
		Skipped:   extraction.Records.Skipped(),
	}

	var runID *string
	if extraction.RunID != "" {
		runID = &extraction.RunID
	}
	return result, runID, nil
}

func (s *Scheduler) completeJob(ctx context.Context, job *domain.ExtractionJob, prof *domain.SocialProfile, campaign *domain.Campaign, result *domain.ExtractionResult, runID *string) {
	if err := s.ingestor.Ingest(ctx, prof, campaign, job.ID, result); err != nil {
		s.failJob(ctx, job, prof, domain.ErrorTransient, fmt.Errorf("ingest records: %w", err))
		return
	}

	posts, comments := 0, 0
	for i := range result.Records {
		if result.Records[i].Kind == domain.RecordKindPost {
			posts++
		} else {
			comments++
		}
	}

	completedAt := s.now().UTC()
	job.State = domain.JobStateCompleted
	job.CompletedAt = &completedAt
	job.ProviderRunID = runID
	job.ExtractedPosts = posts
	job.ExtractedComments = comments
	job.SkippedRecords = result.Skipped

	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to persist completed job", "job_id", job.ID, "error", err)
	}
	if err := s.profiles.RecordSuccess(ctx, prof.ID, completedAt); err != nil {
		s.logger.Warn("failed to record profile success", "profile_id", prof.ID, "error", err)
	}
	s.notifyState(ctx, job)

	s.logger.Info("job completed",
		"job_id", job.ID,
		"profile_id", prof.ID,
		"posts", posts,
		"comments", comments,
		"skipped", result.Skipped,
	)
}

// failJob handles both the requeue path for retryable failures and the
// terminal Failed path, including the consecutive-failure deactivation hook.
func (s *Scheduler) failJob(ctx context.Context, job *domain.ExtractionJob, prof *domain.SocialProfile, kind domain.ErrorKind, cause error) {
	if s.retry.ShouldRetry(job.Attempts, kind) {
		delay := s.retry.Delay(job.Attempts)
		job.State = domain.JobStatePending
		if err := s.jobs.Update(ctx, job); err != nil {
			s.logger.Error("failed to persist requeued job", "job_id", job.ID, "error", err)
		}

		s.logger.Warn("job requeued",
			"job_id", job.ID,
			"attempt", job.Attempts,
			"max_attempts", s.retry.MaxAttempts,
			"kind", kind,
			"delay", delay,
			"error", cause,
		)

		s.queue.Push(job, s.now().Add(delay))
		return
	}

	completedAt := s.now().UTC()
	kindStr := string(kind)
	msg := cause.Error()
	job.State = domain.JobStateFailed
	job.CompletedAt = &completedAt
	job.ErrorKind = &kindStr
	job.ErrorMessage = &msg

	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("failed to persist failed job", "job_id", job.ID, "error", err)
	}
	s.notifyState(ctx, job)

	s.logger.Error("job failed",
		"job_id", job.ID,
		"profile_id", job.ProfileID,
		"attempts", job.Attempts,
		"kind", kind,
		"error", cause,
	)

	if prof == nil {
		return
	}

	failures, err := s.profiles.RecordFailure(ctx, prof.ID, completedAt)
	if err != nil {
		s.logger.Warn("failed to record profile failure", "profile_id", prof.ID, "error", err)
		return
	}

	if failures >= s.cfg.DeactivateThreshold {
		changed, err := s.profiles.Deactivate(ctx, prof.ID)
		if err != nil {
			s.logger.Error("failed to deactivate profile", "profile_id", prof.ID, "error", err)
			return
		}
		if changed {
			s.logger.Warn("profile deactivated",
				"profile_id", prof.ID,
				"consecutive_failures", failures,
			)
			if err := s.notifier.ProfileDeactivated(ctx, prof.ID, DeactivationReason); err != nil {
				s.logger.Warn("deactivation notification failed", "profile_id", prof.ID, "error", err)
			}
		}
	}
}

func (s *Scheduler) finishCancelled(ctx context.Context, job *domain.ExtractionJob) error {
	return s.markCancelled(ctx, job, "cancelled while pending")
}

func (s *Scheduler) finishCancelledWithReason(ctx context.Context, job *domain.ExtractionJob, reason string) {
	_ = s.markCancelled(ctx, job, reason)
}

func (s *Scheduler) markCancelled(ctx context.Context, job *domain.ExtractionJob, reason string) error {
	if job.State.Terminal() {
		return domain.ErrJobTerminal
	}

	completedAt := s.now().UTC()
	job.State = domain.JobStateCancelled
	job.CompletedAt = &completedAt
	job.ErrorMessage = &reason

	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist cancelled job: %w", err)
	}
	s.notifyState(ctx, job)

	s.logger.Info("job cancelled", "job_id", job.ID, "reason", reason)
	return nil
}

func (s *Scheduler) notifyState(ctx context.Context, job *domain.ExtractionJob) {
	if err := s.notifier.JobStateChanged(ctx, job.ID, job.State); err != nil {
		s.logger.Warn("job state notification failed",
			"job_id", job.ID,
			"state", job.State,
			"error", err,
		)
	}
}
