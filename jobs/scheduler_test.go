package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/require"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

const fakeWorkerEnv = "FLIGHTCAL_FAKE_WORKER"

// TestMain turns the test binary into a fake worker when re-executed by the
// scheduler under test.
func TestMain(m *testing.M) {
	if os.Getenv(fakeWorkerEnv) == "1" {
		args := os.Args[1:]
		// LIE writes an error payload but still exits cleanly.
		if len(args) == WorkerArgs && args[0] == "LIE" {
			if err := os.WriteFile(args[4], []byte(`{"error":"stale session","traceback":""}`), 0o644); err != nil {
				os.Exit(2)
			}
			os.Exit(0)
		}
		os.Exit(RunWorker(context.Background(), args, fakeScrape, quietLogger()))
	}
	os.Exit(m.Run())
}

// fakeScrape behaves according to the origin code.
func fakeScrape(ctx context.Context, req models.ScrapeRequest, start, end time.Time) (models.PriceMap, error) {
	switch req.Origin {
	case "SLP":
		time.Sleep(time.Minute)
		return nil, nil
	case "ERR":
		return nil, fmt.Errorf("open calendar: %w", errors.New("calendar not found"))
	case "PNC":
		panic("selector exploded")
	case "CRS":
		os.Exit(3)
	}

	prices := make(models.PriceMap)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		prices[d.Format(models.DateLayout)] = float64(100 + d.Day())
	}
	return prices, nil
}

// alive reports whether pid still exists.
func alive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	s, err := NewScheduler(Options{
		Command: []string{exe},
		Env:     []string{fakeWorkerEnv + "=1"},
		TempDir: t.TempDir(),
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func req(origin, destination string) models.ScrapeRequest {
	return models.ScrapeRequest{Origin: origin, Destination: destination}
}

func TestSchedulerCollectsPrices(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	// 2026-03-05 .. 2026-05-01 is 58 days.
	id, err := s.Submit(ctx, req("AAA", "BBB"), day("2026-03-05"), day("2026-05-01"))
	require.NoError(t, err)
	require.Len(t, id, 8)

	prices, err := s.Wait(ctx, id, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, prices, 58)
	require.Equal(t, 105.0, prices["2026-03-05"])
	require.Equal(t, 101.0, prices["2026-05-01"])

	_, err = os.Stat(filepath.Join(s.opts.TempDir, "result_"+id+".json"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, ok := s.lookup(id)
	require.False(t, ok)
}

func TestSchedulerJobsAreIsolated(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	good, err := s.Submit(ctx, req("CDG", "NCL"), day("2026-06-01"), day("2026-06-10"))
	require.NoError(t, err)
	bad, err := s.Submit(ctx, req("ERR", "NCL"), day("2026-06-01"), day("2026-06-10"))
	require.NoError(t, err)
	require.NotEqual(t, good, bad)

	_, err = s.Wait(ctx, bad, 30*time.Second)
	var we *WorkerError
	require.True(t, errors.As(err, &we))
	require.Equal(t, "open calendar: calendar not found", we.Message)
	require.Contains(t, we.Traceback, "calendar not found")
	require.Equal(t, 1, we.ExitCode)

	prices, err := s.Wait(ctx, good, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, prices, 10)
}

func TestSchedulerTimeoutDoesNotDisturbOtherJobs(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	slow, err := s.Submit(ctx, req("SLP", "NCL"), day("2026-06-01"), day("2026-06-10"))
	require.NoError(t, err)
	good, err := s.Submit(ctx, req("CDG", "NCL"), day("2026-06-01"), day("2026-06-10"))
	require.NoError(t, err)

	var (
		wg               sync.WaitGroup
		slowErr, goodErr error
		prices           models.PriceMap
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, slowErr = s.Wait(ctx, slow, 700*time.Millisecond)
	}()
	go func() {
		defer wg.Done()
		prices, goodErr = s.Wait(ctx, good, 30*time.Second)
	}()
	wg.Wait()

	var te *TimeoutError
	require.True(t, errors.As(slowErr, &te))
	require.Equal(t, slow, te.JobID)
	require.NoError(t, goodErr)
	require.Len(t, prices, 10)
	require.Zero(t, s.ActiveCount())
}

func TestSchedulerErrorPayloadWinsOverExitCode(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	id, err := s.Submit(ctx, req("LIE", "NCL"), day("2026-06-01"), day("2026-06-02"))
	require.NoError(t, err)

	_, err = s.Wait(ctx, id, 30*time.Second)
	var we *WorkerError
	require.True(t, errors.As(err, &we))
	require.Equal(t, 0, we.ExitCode)
	require.Equal(t, "stale session", we.Message)
}

func TestSchedulerJobStates(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	submit := func(origin string) (string, *job) {
		id, err := s.Submit(ctx, req(origin, "NCL"), day("2026-06-01"), day("2026-06-03"))
		require.NoError(t, err)
		j, ok := s.lookup(id)
		require.True(t, ok)
		require.Equal(t, StateRunning, s.stateOf(j))
		return id, j
	}

	id, completed := submit("CDG")
	_, err := s.Wait(ctx, id, 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, s.stateOf(completed))

	id, failed := submit("ERR")
	_, err = s.Wait(ctx, id, 30*time.Second)
	require.Error(t, err)
	require.Equal(t, StateFailed, s.stateOf(failed))

	id, slow := submit("SLP")
	_, err = s.Wait(ctx, id, 300*time.Millisecond)
	require.Error(t, err)
	require.Equal(t, StateTimedOut, s.stateOf(slow))
}

func TestSchedulerRecoversWorkerPanic(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	id, err := s.Submit(ctx, req("PNC", "NCL"), day("2026-06-01"), day("2026-06-02"))
	require.NoError(t, err)

	_, err = s.Wait(ctx, id, 30*time.Second)
	var we *WorkerError
	require.True(t, errors.As(err, &we))
	require.Contains(t, we.Message, "selector exploded")
	require.Contains(t, we.Traceback, "goroutine")
}

func TestSchedulerMissingResult(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	id, err := s.Submit(ctx, req("CRS", "NCL"), day("2026-06-01"), day("2026-06-02"))
	require.NoError(t, err)

	_, err = s.Wait(ctx, id, 30*time.Second)
	var we *WorkerError
	require.True(t, errors.As(err, &we))
	require.Equal(t, 3, we.ExitCode)
}

func TestSchedulerTimeoutKillsWorker(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	id, err := s.Submit(ctx, req("SLP", "NCL"), day("2026-06-01"), day("2026-06-02"))
	require.NoError(t, err)
	j, ok := s.lookup(id)
	require.True(t, ok)
	pid := j.cmd.Process.Pid
	require.Equal(t, 1, s.ActiveCount())

	_, err = s.Wait(ctx, id, 500*time.Millisecond)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	require.Equal(t, id, te.JobID)

	require.False(t, alive(pid))
	require.Zero(t, s.ActiveCount())
	_, ok = s.lookup(id)
	require.False(t, ok)
}

func TestSchedulerWaitUnknownJob(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.Wait(context.Background(), "deadbeef", time.Second)
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestSchedulerCleanupOld(t *testing.T) {
	s := newTestScheduler(t)
	ctx := context.Background()

	id, err := s.Submit(ctx, req("SLP", "NCL"), day("2026-06-01"), day("2026-06-02"))
	require.NoError(t, err)

	orphan := filepath.Join(s.opts.TempDir, "result_0badf00d.json")
	require.NoError(t, os.WriteFile(orphan, []byte(`{}`), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	require.Zero(t, s.CleanupOld(time.Hour))
	require.NoFileExists(t, orphan)
	require.Len(t, s.Jobs(), 1)
	require.True(t, s.Jobs()[0].Running)
	require.Equal(t, StateRunning, s.Jobs()[0].State)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.Equal(t, 1, s.CleanupOld(time.Hour))
	require.Empty(t, s.Jobs())
	_, ok := s.lookup(id)
	require.False(t, ok)
}

func TestRunWorkerUsage(t *testing.T) {
	require.Equal(t, 1, RunWorker(context.Background(), []string{"CDG"}, fakeScrape, quietLogger()))
}

func TestRunWorkerBadDate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "result_x.json")
	code := RunWorker(context.Background(),
		[]string{"CDG", "NCL", "june", "2026-06-02", file, "x"}, fakeScrape, quietLogger())
	require.Equal(t, 1, code)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), `"error"`)
}
