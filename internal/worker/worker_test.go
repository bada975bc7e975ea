package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
	"github.com/betassistant/server/internal/infrastructure/repository/memory"
	"github.com/betassistant/server/internal/platform/logging"
	"github.com/betassistant/server/internal/usecase"
)

// emptyProvider answers every request with no data, so a claimed job runs
// through all leagues instantly.
type emptyProvider struct{}

func (emptyProvider) FixturesByLeague(context.Context, int64, int, time.Time, time.Time) ([]usecase.ProviderFixture, error) {
	return nil, nil
}

func (emptyProvider) FixtureStatistics(context.Context, int64) ([]usecase.ProviderTeamStatistics, error) {
	return nil, nil
}

func (emptyProvider) FixtureOdds(context.Context, int64) (*usecase.ProviderOdds, error) {
	return nil, nil
}

func (emptyProvider) Standings(context.Context, int64, int) ([]usecase.ProviderStandingRow, error) {
	return nil, nil
}

func (emptyProvider) Quota() usecase.Quota { return usecase.Quota{} }

// lowQuotaProvider reports an almost exhausted budget so the orchestrator
// reschedules the claimed job instead of running it.
type lowQuotaProvider struct {
	emptyProvider
	quota usecase.Quota
}

func (p lowQuotaProvider) Quota() usecase.Quota { return p.quota }

type capturingNotifier struct {
	mu   sync.Mutex
	jobs []*importjob.Job
	done chan struct{}
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{done: make(chan struct{}, 8)}
}

func (n *capturingNotifier) NotifyJobFinished(_ context.Context, job *importjob.Job) error {
	n.mu.Lock()
	n.jobs = append(n.jobs, job)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *capturingNotifier) waitForHook(t *testing.T) *importjob.Job {
	t.Helper()

	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("completion hook never fired")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.jobs[len(n.jobs)-1]
}

type workerEnv struct {
	worker   *Worker
	jobs     *memory.ImportJobRepository
	notifier *capturingNotifier
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()
	return newWorkerEnvWithProvider(t, emptyProvider{})
}

func newWorkerEnvWithProvider(t *testing.T, provider usecase.SportsDataProvider) *workerEnv {
	t.Helper()

	jobs := memory.NewImportJobRepository()
	failures := memory.NewImportFailureRepository()
	matches := memory.NewMatchRepository()
	leagues := memory.NewLeagueRepository(
		league.League{ID: 39, Name: "Premier League", Enabled: true, Priority: 1},
	)

	monitor := usecase.NewRateLimitMonitor(provider)
	matchImporter := usecase.NewMatchImportService(matches, failures, provider, logging.NewNop(), usecase.MatchImportConfig{})
	leagueImporter := usecase.NewLeagueImportService(jobs, matchImporter, provider, monitor, logging.NewNop(), usecase.LeagueImportConfig{})
	orchestrator := usecase.NewImportOrchestratorService(jobs, leagues, provider, monitor, leagueImporter, logging.NewNop(), usecase.ImportOrchestratorConfig{})
	jobService := usecase.NewJobService(jobs, failures, leagues, orchestrator, logging.NewNop())

	notifier := newCapturingNotifier()
	importWorker, err := New(jobs, jobService, orchestrator, notifier, logging.NewNop(), Config{
		PollInterval: time.Minute,
		HookWorkers:  1,
	})
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	return &workerEnv{worker: importWorker, jobs: jobs, notifier: notifier}
}

func (e *workerEnv) seedJob(t *testing.T, status importjob.Status) *importjob.Job {
	t.Helper()

	job := &importjob.Job{
		Type:     importjob.TypeNewMatches,
		Status:   status,
		FromDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
	}
	if err := e.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func TestWorker_PollOnce_RunsPendingJobAndPromotesQueue(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	ctx := context.Background()

	pending := env.seedJob(t, importjob.StatusPending)
	queued := env.seedJob(t, importjob.StatusInQueue)

	if again := env.worker.pollOnce(ctx); !again {
		t.Fatalf("pollOnce must request an immediate re-poll after promoting the queue")
	}

	finished, err := env.jobs.GetByID(ctx, pending.ID)
	if err != nil || finished == nil {
		t.Fatalf("load finished job: %v", err)
	}
	if finished.Status != importjob.StatusCompleted {
		t.Fatalf("claimed job status = %s, want completed", finished.Status)
	}

	hooked := env.notifier.waitForHook(t)
	if hooked.ID != pending.ID {
		t.Fatalf("hook fired for job %d, want %d", hooked.ID, pending.ID)
	}

	promoted, err := env.jobs.GetByID(ctx, queued.ID)
	if err != nil || promoted == nil {
		t.Fatalf("load promoted job: %v", err)
	}
	if promoted.Status != importjob.StatusPending {
		t.Fatalf("queued job status = %s, want pending", promoted.Status)
	}

	if again := env.worker.pollOnce(ctx); again {
		t.Fatalf("second poll must not request a re-poll once the queue is empty")
	}
	env.notifier.waitForHook(t)
}

func TestWorker_PollOnce_RateLimitedJobHoldsSlot(t *testing.T) {
	t.Parallel()

	env := newWorkerEnvWithProvider(t, lowQuotaProvider{
		quota: usecase.Quota{
			Remaining: 5,
			ResetAt:   time.Now().UTC().Add(15 * time.Minute),
			Known:     true,
		},
	})
	ctx := context.Background()

	first := env.seedJob(t, importjob.StatusPending)
	queued := env.seedJob(t, importjob.StatusInQueue)

	if again := env.worker.pollOnce(ctx); again {
		t.Fatalf("rate-limited job must not trigger a re-poll")
	}

	limited, err := env.jobs.GetByID(ctx, first.ID)
	if err != nil || limited == nil {
		t.Fatalf("load rate-limited job: %v", err)
	}
	if limited.Status != importjob.StatusRateLimited {
		t.Fatalf("claimed job status = %s, want rate_limited", limited.Status)
	}

	// The slot is still held, so the queued job must neither be promoted
	// nor claimed on the next poll.
	if again := env.worker.pollOnce(ctx); again {
		t.Fatalf("held slot must not trigger a re-poll")
	}
	waiting, err := env.jobs.GetByID(ctx, queued.ID)
	if err != nil || waiting == nil {
		t.Fatalf("load queued job: %v", err)
	}
	if waiting.Status != importjob.StatusInQueue {
		t.Fatalf("queued job status = %s, want in_queue behind the rate-limited job", waiting.Status)
	}

	all, err := env.jobs.List(ctx, true, 0)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	holding := 0
	for _, job := range all {
		if job.Status == importjob.StatusRunning || job.Status == importjob.StatusRateLimited {
			holding++
		}
	}
	if holding != 1 {
		t.Fatalf("jobs holding the import slot = %d, want 1", holding)
	}
}

func TestWorker_PollOnce_PromotesWhenNothingClaimable(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	ctx := context.Background()

	// Only a queued job is left, e.g. after its predecessor was canceled
	// between polls.
	queued := env.seedJob(t, importjob.StatusInQueue)

	if again := env.worker.pollOnce(ctx); !again {
		t.Fatalf("promoting the queue must request an immediate re-poll")
	}
	promoted, err := env.jobs.GetByID(ctx, queued.ID)
	if err != nil || promoted == nil {
		t.Fatalf("load promoted job: %v", err)
	}
	if promoted.Status != importjob.StatusPending {
		t.Fatalf("queued job status = %s, want pending", promoted.Status)
	}

	if again := env.worker.pollOnce(ctx); again {
		t.Fatalf("second poll must not request a re-poll once the queue is empty")
	}
	finished, err := env.jobs.GetByID(ctx, queued.ID)
	if err != nil || finished == nil {
		t.Fatalf("load finished job: %v", err)
	}
	if finished.Status != importjob.StatusCompleted {
		t.Fatalf("promoted job status = %s, want completed", finished.Status)
	}
	env.notifier.waitForHook(t)
}

func TestWorker_PollOnce_NothingPending(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	if again := env.worker.pollOnce(context.Background()); again {
		t.Fatalf("empty repository must not trigger a re-poll")
	}
}

func TestWorker_PollOnce_SlotAlreadyTaken(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	env.seedJob(t, importjob.StatusPending)

	env.worker.processing.Set(99)
	if again := env.worker.pollOnce(context.Background()); again {
		t.Fatalf("occupied slot must skip the poll")
	}
	if got := env.worker.ProcessingJobID(); got != 99 {
		t.Fatalf("processing job id = %d, want untouched 99", got)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	env := newWorkerEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.worker.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop on cancel")
	}
}

func TestAtomicJobID(t *testing.T) {
	t.Parallel()

	var slot atomicJobID

	if slot.Current() != 0 {
		t.Fatalf("fresh slot must be idle")
	}
	if !slot.TryAcquire() {
		t.Fatalf("acquire on idle slot must succeed")
	}
	if slot.TryAcquire() {
		t.Fatalf("double acquire must fail")
	}
	if slot.Current() != 0 {
		t.Fatalf("claimed slot without a job id must report 0")
	}

	slot.Set(42)
	if slot.Current() != 42 {
		t.Fatalf("current = %d, want 42", slot.Current())
	}

	slot.Release()
	if slot.Current() != 0 {
		t.Fatalf("released slot must be idle")
	}
	if !slot.TryAcquire() {
		t.Fatalf("acquire after release must succeed")
	}
}
