package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

const (
	resultPrefix = "result_"
	resultSuffix = ".json"

	// reapTimeout bounds how long a killed worker may take to be reaped.
	reapTimeout = 5 * time.Second
)

// Options configures a Scheduler.
type Options struct {
	// Command is the worker argv prefix, typically {os.Executable(), "worker"}.
	// The six job arguments are appended to it.
	Command []string
	// Env is added to the parent environment of every worker.
	Env []string
	// TempDir holds the result hand-off files.
	TempDir string
	// RequestsPerHour paces submissions. Zero or less disables pacing.
	RequestsPerHour int
	Logger          *slog.Logger
}

// JobState is the lifecycle stage of a job.
type JobState string

const (
	StateSubmitted JobState = "submitted"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateTimedOut  JobState = "timed_out"
)

// JobInfo is a point-in-time view of a tracked job.
type JobInfo struct {
	ID        string    `json:"id"`
	Route     string    `json:"route"`
	PID       int       `json:"pid"`
	State     JobState  `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Running   bool      `json:"running"`
}

type job struct {
	id         string
	req        models.ScrapeRequest
	resultFile string
	cmd        *exec.Cmd
	started    time.Time
	output     *lockedBuffer
	state      JobState // guarded by Scheduler.mu

	done    chan struct{}
	waitErr error
}

func (j *job) running() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// Scheduler runs every scrape in its own worker process and collects the
// result through a JSON file. The job table is guarded by mu; waiting
// happens outside the lock.
type Scheduler struct {
	opts    Options
	log     *slog.Logger
	limiter *rate.Limiter
	now     func() time.Time

	mu   sync.Mutex
	jobs map[string]*job
}

func NewScheduler(opts Options) (*Scheduler, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("worker command is empty")
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "flightcal")
	}
	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerHour > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(opts.RequestsPerHour)), opts.RequestsPerHour)
	}

	return &Scheduler{
		opts:    opts,
		log:     opts.Logger,
		limiter: limiter,
		now:     time.Now,
		jobs:    make(map[string]*job),
	}, nil
}

// Submit starts a worker process for req over [start, end] and returns the
// job id. It blocks while the submission rate is exhausted.
func (s *Scheduler) Submit(ctx context.Context, req models.ScrapeRequest, start, end time.Time) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for submission slot: %w", err)
	}

	id := uuid.NewString()[:8]
	resultFile := filepath.Join(s.opts.TempDir, resultPrefix+id+resultSuffix)

	args := append(slices.Clone(s.opts.Command[1:]),
		req.Origin, req.Destination,
		start.Format(models.DateLayout), end.Format(models.DateLayout),
		resultFile, id)
	cmd := exec.Command(s.opts.Command[0], args...)
	cmd.Env = append(os.Environ(), s.opts.Env...)
	out := &lockedBuffer{}
	cmd.Stdout = out
	cmd.Stderr = out
	// A grandchild holding the pipes must not block Wait forever.
	cmd.WaitDelay = reapTimeout

	j := &job{
		id:         id,
		req:        req,
		resultFile: resultFile,
		cmd:        cmd,
		output:     out,
		state:      StateSubmitted,
		done:       make(chan struct{}),
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start worker: %w", err)
	}
	go func() {
		j.waitErr = cmd.Wait()
		close(j.done)
	}()

	s.mu.Lock()
	j.started = s.now()
	j.state = StateRunning
	s.jobs[id] = j
	s.mu.Unlock()

	s.log.Info("job submitted", "job", id, "route", req.Route().String(), "pid", cmd.Process.Pid,
		"start", start.Format(models.DateLayout), "end", end.Format(models.DateLayout))
	return id, nil
}

// Wait blocks until job id exits, timeout elapses or ctx is done. A worker
// still running at the deadline is killed along with its children and its
// partial result discarded. The job is forgotten once Wait returns.
func (s *Scheduler) Wait(ctx context.Context, id string, timeout time.Duration) (models.PriceMap, error) {
	j, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	defer s.forget(j)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-j.done:
	case <-timer.C:
		s.log.Warn("job timed out, killing worker", "job", id, "timeout", timeout)
		s.kill(j, StateTimedOut)
		return nil, &TimeoutError{JobID: id, Timeout: timeout}
	case <-ctx.Done():
		s.log.Warn("job abandoned, killing worker", "job", id, "err", ctx.Err())
		s.kill(j, StateFailed)
		return nil, ctx.Err()
	}

	prices, err := s.collect(j)
	if err != nil {
		s.setState(j, StateFailed)
		s.log.Error("job failed", "job", id, "err", err, "elapsed", s.now().Sub(j.started).Round(time.Millisecond))
		if tail := j.output.Tail(20); tail != "" {
			s.log.Debug("worker output", "job", id, "output", tail)
		}
		return nil, err
	}
	s.setState(j, StateCompleted)
	s.log.Info("job finished", "job", id, "prices", len(prices), "elapsed", s.now().Sub(j.started).Round(time.Millisecond))
	return prices, nil
}

// collect reads the hand-off file of an exited job. An "error" key wins
// over the exit status.
func (s *Scheduler) collect(j *job) (models.PriceMap, error) {
	exitCode := j.cmd.ProcessState.ExitCode()

	data, err := os.ReadFile(j.resultFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			msg := "worker exited without writing a result"
			if j.waitErr != nil {
				msg += ": " + j.waitErr.Error()
			}
			return nil, &WorkerError{JobID: j.id, Message: msg, ExitCode: exitCode}
		}
		return nil, fmt.Errorf("read result file: %w", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode result file: %w", err)
	}
	if _, failed := payload["error"]; failed {
		var f failure
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode worker error: %w", err)
		}
		return nil, &WorkerError{JobID: j.id, Message: f.Error, Traceback: f.Traceback, ExitCode: exitCode}
	}

	prices := make(models.PriceMap, len(payload))
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}
	return prices, nil
}

func (s *Scheduler) setState(j *job, state JobState) {
	s.mu.Lock()
	j.state = state
	s.mu.Unlock()
}

func (s *Scheduler) stateOf(j *job) JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return j.state
}

func (s *Scheduler) lookup(id string) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// forget drops j from the table and removes its hand-off file.
func (s *Scheduler) forget(j *job) {
	s.mu.Lock()
	delete(s.jobs, j.id)
	s.mu.Unlock()

	if err := os.Remove(j.resultFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("remove result file", "job", j.id, "err", err)
	}
}

// kill records state on a job that has not finished yet, then terminates
// the worker tree and waits for the worker to be reaped.
func (s *Scheduler) kill(j *job, state JobState) {
	s.mu.Lock()
	if j.state == StateSubmitted || j.state == StateRunning {
		j.state = state
	}
	s.mu.Unlock()

	if !j.running() {
		return
	}
	if err := killTree(j.cmd.Process.Pid); err != nil {
		s.log.Warn("kill worker tree", "job", j.id, "err", err)
		_ = j.cmd.Process.Kill()
	}
	select {
	case <-j.done:
	case <-time.After(reapTimeout):
		s.log.Error("worker not reaped after kill", "job", j.id, "pid", j.cmd.Process.Pid)
	}
}

// ActiveCount is the number of workers still running.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.running() {
			n++
		}
	}
	return n
}

// Jobs lists tracked jobs, oldest first.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, JobInfo{
			ID:        j.id,
			Route:     j.req.Route().String(),
			PID:       j.cmd.Process.Pid,
			State:     j.state,
			StartedAt: j.started,
			Running:   j.running(),
		})
	}
	s.mu.Unlock()

	slices.SortFunc(infos, func(a, b JobInfo) int { return a.StartedAt.Compare(b.StartedAt) })
	return infos
}

// CleanupOld kills and forgets jobs started more than maxAge ago, then
// removes untracked result files of the same age. It returns the number of
// jobs dropped.
func (s *Scheduler) CleanupOld(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	var stale []*job
	for _, j := range s.jobs {
		if j.started.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	s.mu.Unlock()

	for _, j := range stale {
		s.kill(j, StateTimedOut)
		s.forget(j)
	}

	orphans := s.removeOrphans(cutoff)
	if len(stale) > 0 || orphans > 0 {
		s.log.Info("old jobs cleaned", "jobs", len(stale), "files", orphans)
	}
	return len(stale)
}

func (s *Scheduler) removeOrphans(cutoff time.Time) int {
	files, err := filepath.Glob(filepath.Join(s.opts.TempDir, resultPrefix+"*"+resultSuffix))
	if err != nil {
		return 0
	}
	removed := 0
	for _, f := range files {
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f), resultPrefix), resultSuffix)
		if _, tracked := s.lookup(id); tracked {
			continue
		}
		info, err := os.Stat(f)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(f); err == nil {
			removed++
		}
	}
	return removed
}

// Shutdown kills every running worker and forgets all jobs.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	all := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		all = append(all, j)
	}
	s.mu.Unlock()

	for _, j := range all {
		s.kill(j, StateFailed)
		s.forget(j)
	}
	s.log.Info("scheduler stopped", "jobs", len(all))
}

// lockedBuffer collects worker output written from the exec copy goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Tail returns the last n lines written.
func (b *lockedBuffer) Tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := strings.Split(strings.TrimRight(b.buf.String(), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
