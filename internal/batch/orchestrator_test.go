package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"hlsmerge/internal/batch"
	"hlsmerge/internal/config"
	"hlsmerge/internal/conflict"
	"hlsmerge/internal/history"
	"hlsmerge/internal/logging"
	"hlsmerge/internal/scanner"
	"hlsmerge/internal/testsupport"
	"hlsmerge/internal/transcode"
)

type harness struct {
	cfg    *config.Config
	store  history.Store
	fake   *testsupport.FakeFFmpeg
	input  string
	output string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	h := &harness{}
	opts = append([]testsupport.ConfigOption{testsupport.WithFakeFFmpeg(&h.fake)}, opts...)
	h.cfg = testsupport.NewConfig(t, opts...)
	h.store = testsupport.MustOpenHistory(t, h.cfg)
	h.input = t.TempDir()
	h.output = t.TempDir()
	return h
}

func (h *harness) orchestrator(t *testing.T) *batch.Orchestrator {
	t.Helper()
	o, err := batch.NewFromConfig(h.cfg, h.store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	return o
}

// stubTranscoder records calls and returns fn's result (Success by default).
type stubTranscoder struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, unit scanner.Unit) transcode.Result
}

func (s *stubTranscoder) Transcode(ctx context.Context, unit scanner.Unit) transcode.Result {
	s.mu.Lock()
	s.calls = append(s.calls, unit.Name)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, unit)
	}
	return transcode.Result{Kind: transcode.Success}
}

func (s *stubTranscoder) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (h *harness) withTranscoder(tr batch.Transcoder, policy conflict.Policy) *batch.Orchestrator {
	return batch.New(batch.Deps{
		Scanner:    scanner.New(h.cfg.Convert.ManifestExtension, h.cfg.OutputExtension(), nil),
		Transcoder: tr,
		History:    h.store,
		Policy:     policy,
	})
}

// drain consumes every event of run, answering decisions with answer.
func drain(t *testing.T, run *batch.Run, answer func(*conflict.Request)) ([]batch.Event, batch.Outcome) {
	t.Helper()
	var events []batch.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				return events, run.Wait()
			}
			events = append(events, ev)
			if req, isReq := ev.(batch.DecisionRequested); isReq {
				if answer == nil {
					t.Fatalf("unexpected decision request for %s", req.Request.Unit)
				}
				answer(req.Request)
			}
		case <-timeout:
			t.Fatal("timed out waiting for batch events")
		}
	}
}

func statuses(entries []history.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, filepath.Base(e.InputPath)+":"+e.Status)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBatchConvertsEligibleFoldersInOrder(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "C", "c.m3u8")
	testsupport.WriteUnit(t, h.input, "A", "a.idx")
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")

	o := h.orchestrator(t)
	run, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events, outcome := drain(t, run, nil)

	if outcome.State != batch.Completed {
		t.Fatalf("state = %s, want completed (err %v)", outcome.State, outcome.Err)
	}
	if outcome.Succeeded != 2 || outcome.Reached != 2 || len(outcome.Job.Units) != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if o.State() != batch.Completed {
		t.Fatalf("orchestrator state = %s", o.State())
	}

	entries := testsupport.MustLoadHistory(t, h.store)
	want := []string{"C:" + history.StatusSuccess, "B:" + history.StatusSuccess}
	if got := statuses(entries); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for _, e := range entries {
		if e.BatchID != run.Job.ID {
			t.Fatalf("entry batch id = %q, want %q", e.BatchID, run.Job.ID)
		}
	}
	for _, name := range []string{"B.mp4", "C.mp4"} {
		if _, err := os.Stat(filepath.Join(h.output, name)); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(h.output, "A.mp4")); !os.IsNotExist(err) {
		t.Fatalf("A.mp4 should not exist, stat err = %v", err)
	}

	var order []string
	for _, ev := range events {
		switch e := ev.(type) {
		case batch.UnitStarted:
			order = append(order, "start:"+e.Name)
		case batch.UnitFinished:
			order = append(order, "finish:"+e.Name)
			if e.Total != 2 || !e.Transcoded || e.Kind != transcode.Success {
				t.Fatalf("unexpected UnitFinished %+v", e)
			}
		case batch.BatchEnded:
			order = append(order, "end")
		}
	}
	wantOrder := []string{"start:B", "finish:B", "start:C", "finish:C", "end"}
	if !equalStrings(order, wantOrder) {
		t.Fatalf("events = %v, want %v", order, wantOrder)
	}
	if calls := h.fake.Calls(t); len(calls) != 2 || !strings.Contains(calls[0], "b.m3u8") || !strings.Contains(calls[1], "c.m3u8") {
		t.Fatalf("ffmpeg calls = %v", calls)
	}
}

func TestSkipLeavesExistingOutputUntouched(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")
	testsupport.WriteUnit(t, h.input, "C", "c.m3u8")
	existing := filepath.Join(h.output, "B.mp4")
	if err := os.WriteFile(existing, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(existing)

	run, err := h.orchestrator(t).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	asked := 0
	events, outcome := drain(t, run, func(req *conflict.Request) {
		asked++
		if req.DisplayName != "B.mp4" || req.Unit != "B" {
			t.Errorf("unexpected request %+v", req)
		}
		req.Respond(conflict.Skip)
	})

	if outcome.State != batch.Completed || outcome.Skipped != 1 || outcome.Succeeded != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if asked != 1 {
		t.Fatalf("asked %d times, want 1", asked)
	}
	want := []string{"C:" + history.StatusSuccess, "B:" + history.StatusSkipped}
	if got := statuses(testsupport.MustLoadHistory(t, h.store)); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "original" {
		t.Fatalf("existing output changed: %q, %v", data, err)
	}
	after, _ := os.Stat(existing)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("existing output modification time changed")
	}
	if calls := h.fake.Calls(t); len(calls) != 1 || !strings.Contains(calls[0], "C.mp4") {
		t.Fatalf("ffmpeg calls = %v", calls)
	}

	finished := 0
	for _, ev := range events {
		if f, ok := ev.(batch.UnitFinished); ok {
			finished++
			if f.Name == "B" && f.Transcoded {
				t.Fatal("skipped unit reported as transcoded")
			}
		}
	}
	if finished != 2 {
		t.Fatalf("UnitFinished count = %d, want 2", finished)
	}
}

func TestConflictDecidedOnceBeforeTranscode(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")
	testsupport.WriteFile(t, filepath.Join(h.output, "B.mp4"), 4)

	tr := &stubTranscoder{}
	run, err := h.withTranscoder(tr, conflict.PolicyAsk).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	asked := 0
	_, outcome := drain(t, run, func(req *conflict.Request) {
		asked++
		time.Sleep(20 * time.Millisecond)
		if calls := tr.Calls(); len(calls) != 0 {
			t.Errorf("transcoder invoked before decision: %v", calls)
		}
		req.Respond(conflict.Overwrite)
		req.Respond(conflict.Skip)
	})

	if asked != 1 {
		t.Fatalf("asked %d times, want 1", asked)
	}
	if calls := tr.Calls(); !equalStrings(calls, []string{"B"}) {
		t.Fatalf("transcoder calls = %v", calls)
	}
	if outcome.State != batch.Completed || outcome.Succeeded != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestCancelAllStopsRemainingUnits(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"B", "C", "D"} {
		testsupport.WriteUnit(t, h.input, name, "index.m3u8")
	}
	testsupport.WriteFile(t, filepath.Join(h.output, "C.mp4"), 4)
	testsupport.WriteFile(t, filepath.Join(h.output, "D.mp4"), 4)

	tr := &stubTranscoder{}
	run, err := h.withTranscoder(tr, conflict.PolicyAsk).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events, outcome := drain(t, run, func(req *conflict.Request) {
		if req.Unit != "C" {
			t.Errorf("decision asked for %s", req.Unit)
		}
		req.Dismiss()
	})

	if outcome.State != batch.CancelledByUser {
		t.Fatalf("state = %s, want cancelled_by_user", outcome.State)
	}
	if calls := tr.Calls(); !equalStrings(calls, []string{"B"}) {
		t.Fatalf("transcoder calls = %v", calls)
	}
	want := []string{"C:" + history.StatusCancelled, "B:" + history.StatusSuccess}
	if got := statuses(testsupport.MustLoadHistory(t, h.store)); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	for _, ev := range events {
		if s, ok := ev.(batch.UnitStarted); ok && s.Name == "D" {
			t.Fatal("unit D started after cancel")
		}
	}
}

func TestExecutorMissingAbortsAfterOneEntry(t *testing.T) {
	h := newHarness(t, testsupport.WithFFmpeg(filepath.Join(t.TempDir(), "missing", "ffmpeg")))
	for _, name := range []string{"B", "C", "D"} {
		testsupport.WriteUnit(t, h.input, name, "index.m3u8")
	}

	run, err := h.orchestrator(t).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, outcome := drain(t, run, nil)

	if outcome.State != batch.FatalAborted {
		t.Fatalf("state = %s, want fatal_aborted", outcome.State)
	}
	if !errors.Is(outcome.Err, batch.ErrExecutorMissing) {
		t.Fatalf("outcome err = %v, want ErrExecutorMissing", outcome.Err)
	}
	entries := testsupport.MustLoadHistory(t, h.store)
	want := []string{"B:" + history.StatusExecutorMissing}
	if got := statuses(entries); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestTranscodeFailureContinuesBatch(t *testing.T) {
	var fake *testsupport.FakeFFmpeg
	cfg := testsupport.NewConfig(t, testsupport.WithFakeFFmpeg(&fake, testsupport.FailOn("B.mp4", "Invalid data found", 1)))
	h := &harness{cfg: cfg, store: testsupport.MustOpenHistory(t, cfg), fake: fake, input: t.TempDir(), output: t.TempDir()}
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")
	testsupport.WriteUnit(t, h.input, "C", "c.m3u8")

	run, err := h.orchestrator(t).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, outcome := drain(t, run, nil)

	if outcome.State != batch.Completed || outcome.Failed != 1 || outcome.Succeeded != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	want := []string{"C:" + history.StatusSuccess, "B:" + history.Failed("Invalid data found")}
	if got := statuses(testsupport.MustLoadHistory(t, h.store)); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestCancelHonoredAtUnitBoundary(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"B", "C"} {
		testsupport.WriteUnit(t, h.input, name, "index.m3u8")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &stubTranscoder{fn: func(context.Context, scanner.Unit) transcode.Result {
		cancel()
		return transcode.Result{Kind: transcode.Success}
	}}
	run, err := h.withTranscoder(tr, conflict.PolicyAsk).Start(ctx, h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, outcome := drain(t, run, nil)

	if outcome.State != batch.CancelledByUser {
		t.Fatalf("state = %s, want cancelled_by_user", outcome.State)
	}
	if calls := tr.Calls(); !equalStrings(calls, []string{"B"}) {
		t.Fatalf("transcoder calls = %v", calls)
	}
	want := []string{"B:" + history.StatusSuccess}
	if got := statuses(testsupport.MustLoadHistory(t, h.store)); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestCancelWhileAwaitingDecision(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")
	testsupport.WriteFile(t, filepath.Join(h.output, "B.mp4"), 4)

	tr := &stubTranscoder{}
	o := h.withTranscoder(tr, conflict.PolicyAsk)
	run, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, outcome := drain(t, run, func(*conflict.Request) {
		run.Cancel()
	})

	if outcome.State != batch.CancelledByUser {
		t.Fatalf("state = %s, want cancelled_by_user", outcome.State)
	}
	if len(tr.Calls()) != 0 {
		t.Fatalf("transcoder called: %v", tr.Calls())
	}
	want := []string{"B:" + history.StatusCancelled}
	if got := statuses(testsupport.MustLoadHistory(t, h.store)); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestPolicyAnswersWithoutAsking(t *testing.T) {
	h := newHarness(t, testsupport.WithOnConflict("skip"))
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")
	testsupport.WriteFile(t, filepath.Join(h.output, "B.mp4"), 4)

	run, err := h.orchestrator(t).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, outcome := drain(t, run, nil)
	if outcome.Skipped != 1 || outcome.State != batch.Completed {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if calls := h.fake.Calls(t); len(calls) != 0 {
		t.Fatalf("ffmpeg calls = %v", calls)
	}
}

func TestStartRejectsInvalidDirectories(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t)
	missing := filepath.Join(t.TempDir(), "missing")
	file := filepath.Join(t.TempDir(), "file")
	testsupport.WriteFile(t, file, 1)

	for _, tc := range []struct{ in, out string }{
		{missing, h.output},
		{h.input, missing},
		{file, h.output},
	} {
		run, err := o.Start(context.Background(), tc.in, tc.out)
		if run != nil || !errors.Is(err, batch.ErrInvalidInput) || !errors.Is(err, scanner.ErrInvalidInput) {
			t.Fatalf("Start(%s, %s) = %v, %v; want ErrInvalidInput", tc.in, tc.out, run, err)
		}
	}
	if o.State() != batch.Idle {
		t.Fatalf("state = %s, want idle", o.State())
	}
}

func TestNothingToDo(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "A", "a.idx")

	run, err := h.orchestrator(t).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events, outcome := drain(t, run, nil)
	if outcome.State != batch.NothingToDo {
		t.Fatalf("state = %s, want nothing_to_do", outcome.State)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want only BatchEnded", len(events))
	}
	if entries := testsupport.MustLoadHistory(t, h.store); len(entries) != 0 {
		t.Fatalf("history = %v, want empty", entries)
	}
}

func TestSecondStartIsBusy(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")

	release := make(chan struct{})
	entered := make(chan struct{})
	tr := &stubTranscoder{fn: func(context.Context, scanner.Unit) transcode.Result {
		close(entered)
		<-release
		return transcode.Result{Kind: transcode.Success}
	}}
	o := h.withTranscoder(tr, conflict.PolicyAsk)
	run, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered
	if o.State() != batch.Transcoding {
		t.Fatalf("state = %s, want transcoding", o.State())
	}
	if _, err := o.Start(context.Background(), h.input, h.output); !errors.Is(err, batch.ErrBusy) {
		t.Fatalf("second Start err = %v, want ErrBusy", err)
	}
	close(release)
	drain(t, run, nil)

	tr.fn = nil
	next, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
	if _, outcome := drain(t, next, nil); outcome.State != batch.Completed {
		t.Fatalf("state = %s, want completed", outcome.State)
	}
}

func TestLockFileHeldIsBusy(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")

	other := flock.New(h.cfg.LockPath())
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer other.Unlock()

	if _, err := h.orchestrator(t).Start(context.Background(), h.input, h.output); !errors.Is(err, batch.ErrBusy) {
		t.Fatalf("Start err = %v, want ErrBusy", err)
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, history.Entry) error {
	return errors.New("disk full")
}
func (failingStore) LoadAll(context.Context) ([]history.Entry, error) { return nil, nil }
func (failingStore) Clear(context.Context) error                    { return nil }
func (failingStore) Close() error                                   { return nil }

func TestHistoryWriteFailureIsWarning(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")
	testsupport.WriteUnit(t, h.input, "C", "c.m3u8")

	o := batch.New(batch.Deps{
		Scanner:    scanner.New(".m3u8", ".mp4", nil),
		Transcoder: &stubTranscoder{},
		History:    failingStore{},
	})
	run, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events, outcome := drain(t, run, nil)
	if outcome.State != batch.Completed || outcome.Succeeded != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	warnings := 0
	for _, ev := range events {
		if w, ok := ev.(batch.Warning); ok {
			warnings++
			if !strings.Contains(w.Err.Error(), "disk full") {
				t.Fatalf("warning = %v", w.Err)
			}
		}
	}
	if warnings != 2 {
		t.Fatalf("warnings = %d, want 2", warnings)
	}
}

type erroringScanner struct{}

func (erroringScanner) Scan(string, string) ([]scanner.Unit, error) {
	return nil, errors.New("input vanished")
}

func TestScanFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	o := batch.New(batch.Deps{Scanner: erroringScanner{}, Transcoder: &stubTranscoder{}, History: h.store})
	run, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, outcome := drain(t, run, nil)
	if outcome.State != batch.FatalAborted || outcome.Err == nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestSQLiteHistoryBackend(t *testing.T) {
	h := newHarness(t, testsupport.WithSQLiteHistory())
	testsupport.WriteUnit(t, h.input, "B", "b.m3u8")
	testsupport.WriteUnit(t, h.input, "C", "c.m3u8")

	run, err := h.orchestrator(t).Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, run, nil)
	want := []string{"C:" + history.StatusSuccess, "B:" + history.StatusSuccess}
	if got := statuses(testsupport.MustLoadHistory(t, h.store)); !equalStrings(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

type blockingScanner struct {
	release chan struct{}
}

func (s blockingScanner) Scan(string, string) ([]scanner.Unit, error) {
	<-s.release
	return nil, nil
}

func TestStartClaimsOrchestratorBeforeScanning(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	o := batch.New(batch.Deps{Scanner: blockingScanner{release: release}, Transcoder: &stubTranscoder{}, History: h.store})

	run, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := o.State(); got != batch.Scanning {
		t.Fatalf("state right after Start = %s, want scanning", got)
	}
	if _, err := o.Start(context.Background(), h.input, h.output); !errors.Is(err, batch.ErrBusy) {
		t.Fatalf("second Start err = %v, want ErrBusy", err)
	}

	close(release)
	if _, outcome := drain(t, run, nil); outcome.State != batch.NothingToDo {
		t.Fatalf("state = %s, want nothing_to_do", outcome.State)
	}
	if !o.State().Terminal() {
		t.Fatalf("state after batch = %s, want terminal", o.State())
	}
	next, err := o.Start(context.Background(), h.input, h.output)
	if err != nil {
		t.Fatalf("Start from terminal state: %v", err)
	}
	drain(t, next, nil)
}
