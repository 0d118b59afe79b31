package ingest

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yang-kun-long/insight-ingest/internal/api"
	"github.com/yang-kun-long/insight-ingest/internal/model"
	"github.com/yang-kun-long/insight-ingest/internal/stage"
)

// fakeBackend scripts the remote surface so pipeline behavior can be asserted
// without a server.
type fakeBackend struct {
	mu sync.Mutex

	initResp *api.InitResponse
	initErr  error

	missing    []int
	missingErr error

	segments     []int
	segmentErr   error
	blockUploads chan struct{} // when set, uploads block until closed or ctx ends
	started      chan struct{}

	completeCalls int
	completeErr   error

	statusScript []api.StatusResponse
	statusIdx    int

	deepStarts []string
	deepErr    error
	deepScript []api.StatusResponse
	deepIdx    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		initResp:   &api.InitResponse{Exists: false, Identity: "abc123", SessionRef: "sess-1"},
		missingErr: errors.New("missing endpoint unavailable"),
		started:    make(chan struct{}, 64),
	}
}

func (f *fakeBackend) InitIngestion(_ context.Context, _ api.InitRequest) (*api.InitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	resp := *f.initResp
	return &resp, nil
}

func (f *fakeBackend) UploadSegment(ctx context.Context, _ string, index int, _ []byte) error {
	f.mu.Lock()
	block := f.blockUploads
	segErr := f.segmentErr
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if segErr != nil {
		return segErr
	}

	f.mu.Lock()
	f.segments = append(f.segments, index)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) MissingSegments(_ context.Context, _ string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.missing, f.missingErr
}

func (f *fakeBackend) CompleteIngestion(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	return f.completeErr
}

func (f *fakeBackend) IngestionStatus(_ context.Context, _ string) (api.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusScript) == 0 {
		return api.StatusResponse{}, errors.New("no status scripted")
	}
	resp := f.statusScript[f.statusIdx]
	if f.statusIdx < len(f.statusScript)-1 {
		f.statusIdx++
	}
	return resp, nil
}

func (f *fakeBackend) StartDeepProcess(_ context.Context, contentRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deepStarts = append(f.deepStarts, contentRef)
	return f.deepErr
}

func (f *fakeBackend) DeepProcessStatus(_ context.Context, _ string) (api.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.deepScript) == 0 {
		return api.StatusResponse{}, errors.New("no deep status scripted")
	}
	resp := f.deepScript[f.deepIdx]
	if f.deepIdx < len(f.deepScript)-1 {
		f.deepIdx++
	}
	return resp, nil
}

func (f *fakeBackend) uploadedSegments() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int(nil), f.segments...)
	sort.Ints(out)
	return out
}

func (f *fakeBackend) completions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls
}

// stateLog collects every state transition and streams them to waiters.
type stateLog struct {
	mu     sync.Mutex
	states []model.State
	ch     chan model.State
}

func newStateLog() *stateLog {
	return &stateLog{ch: make(chan model.State, 256)}
}

func (l *stateLog) record(task *model.Task) {
	l.mu.Lock()
	state := task.State
	l.states = append(l.states, state)
	l.mu.Unlock()
	l.ch <- state
}

func (l *stateLog) snapshot() []model.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.State(nil), l.states...)
}

func (l *stateLog) waitFor(t *testing.T, match func(model.State) bool) model.State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-l.ch:
			if match(state) {
				return state
			}
		case <-deadline:
			t.Fatalf("task never reached the expected state; saw %+v", l.snapshot())
		}
	}
}

func (l *stateLog) waitTerminal(t *testing.T) model.State {
	t.Helper()
	return l.waitFor(t, model.State.Terminal)
}

func testOptions() Options {
	return Options{
		PartSize:      100,
		Concurrency:   2,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
		PollInterval:  time.Millisecond,
	}
}

func newTestService(fb *fakeBackend, opts Options) (*Service, *stateLog, *stage.Registry) {
	registry := stage.NewRegistry()
	svc := NewService(fb, registry, opts, nil)
	log := newStateLog()
	svc.SetUpdateCallback(log.record)
	return svc, log, registry
}

func serviceIdentity() model.Identity {
	return model.Identity{
		CourseID:  "course-1",
		VideoID:   42,
		VideoType: "vga",
		StartedAt: "2026-03-01T10:00:00",
	}
}

func payload(n int) (*bytes.Reader, int64) {
	return bytes.NewReader(make([]byte, n)), int64(n)
}

func doneScript(ref string) []api.StatusResponse {
	return []api.StatusResponse{
		{Stage: stage.StageQueued},
		{Stage: stage.StageMerging, Progress: 0.5},
		{Stage: stage.StageTranscoding, Progress: 0.3},
		{Stage: stage.StageTranscoding, Progress: 0.9},
		{Stage: stage.StageDone, Progress: 1.0, DownloadRef: ref},
	}
}

func TestIngest_PreflightHitSkipsUpload(t *testing.T) {
	fb := newFakeBackend()
	fb.initResp = &api.InitResponse{Exists: true, Identity: "abc123", DownloadRef: "/download/abc123"}
	svc, log, registry := newTestService(fb, testOptions())

	reader, size := payload(250)
	task, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	final := log.waitTerminal(t)
	assert.Equal(t, model.PhaseFinished, final.Phase)
	assert.Equal(t, "/download/abc123", final.ResultRef)
	assert.Equal(t, model.CheckpointMerged, final.Checkpoint)

	assert.Empty(t, fb.uploadedSegments(), "existing content must not be uploaded")
	assert.Zero(t, fb.completions())
	assert.True(t, registry.Done(task.Identity.Key()))
}

func TestIngest_FullPipeline(t *testing.T) {
	fb := newFakeBackend()
	fb.statusScript = doneScript("/download/abc123")
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	_, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	final := log.waitTerminal(t)
	require.Equal(t, model.PhaseFinished, final.Phase)
	assert.Equal(t, "/download/abc123", final.ResultRef)
	assert.Equal(t, model.CheckpointMerged, final.Checkpoint)

	assert.Equal(t, []int{1, 2, 3}, fb.uploadedSegments())
	assert.Equal(t, 1, fb.completions())

	var sawUpload, sawQueuedWait, sawTranscode bool
	for _, state := range log.snapshot() {
		switch {
		case state.Phase == model.PhaseUploading:
			sawUpload = true
		case state.Phase == model.PhaseWaiting && state.Wait == model.WaitTranscode && state.Label == "QUEUED":
			sawQueuedWait = true
		case state.Phase == model.PhaseTranscoding && state.Progress == 0.9:
			sawTranscode = true
		}
	}
	assert.True(t, sawUpload, "upload progress must be surfaced")
	assert.True(t, sawQueuedWait, "queued merge stage maps to waiting")
	assert.True(t, sawTranscode, "transcode progress must be surfaced")
}

func TestIngest_InitFailureIsDownloadError(t *testing.T) {
	fb := newFakeBackend()
	fb.initErr = &api.ServerError{StatusCode: 500, Message: "db down"}
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	_, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	final := log.waitTerminal(t)
	assert.Equal(t, model.PhaseError, final.Phase)
	assert.Equal(t, model.ErrorDownload, final.ErrKind)
	assert.Equal(t, "db down", final.Message)
}

func TestIngest_SegmentFailureIsUploadError(t *testing.T) {
	fb := newFakeBackend()
	fb.segmentErr = errors.New("disk full")
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	_, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	final := log.waitTerminal(t)
	assert.Equal(t, model.PhaseError, final.Phase)
	assert.Equal(t, model.ErrorUpload, final.ErrKind)
	assert.Zero(t, fb.completions(), "completion must not follow a failed upload")
}

func TestIngest_RemoteFailureSurfacesMessage(t *testing.T) {
	fb := newFakeBackend()
	fb.statusScript = []api.StatusResponse{
		{Stage: stage.StageQueued},
		{Stage: stage.StageFailed, Message: "boom"},
	}
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	_, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	final := log.waitTerminal(t)
	assert.Equal(t, model.PhaseError, final.Phase)
	assert.Equal(t, model.ErrorTranscode, final.ErrKind)
	assert.Equal(t, "boom", final.Message)
}

func TestIngest_CancelDuringUpload(t *testing.T) {
	fb := newFakeBackend()
	fb.blockUploads = make(chan struct{})
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	task, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	select {
	case <-fb.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no upload started")
	}
	require.NoError(t, svc.Cancel(task.ID))

	final := log.waitTerminal(t)
	assert.True(t, final.Cancelled(), "cancellation must not be reported as failure: %+v", final)
	assert.Equal(t, model.ErrorCancelled, final.ErrKind)
	assert.Zero(t, fb.completions())
}

func TestIngest_ResumeSkipsAcknowledgedSegments(t *testing.T) {
	fb := newFakeBackend()
	fb.missing = []int{2}
	fb.missingErr = nil
	fb.statusScript = doneScript("/download/abc123")
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	_, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	final := log.waitTerminal(t)
	require.Equal(t, model.PhaseFinished, final.Phase)
	assert.Equal(t, []int{2}, fb.uploadedSegments(), "only missing segments are retransferred")
}

func TestIngest_RejectsDuplicateActiveTask(t *testing.T) {
	fb := newFakeBackend()
	fb.blockUploads = make(chan struct{})
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	task, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)
	<-fb.started

	reader2, size2 := payload(250)
	_, err = svc.Ingest(serviceIdentity(), reader2, size2)
	assert.Error(t, err)

	require.NoError(t, svc.Cancel(task.ID))
	log.waitTerminal(t)
}

func TestIngest_RejectsAlreadyIngestedContent(t *testing.T) {
	fb := newFakeBackend()
	svc, _, registry := newTestService(fb, testOptions())

	registry.Observe(serviceIdentity().Key(), stage.StageDone)

	reader, size := payload(250)
	_, err := svc.Ingest(serviceIdentity(), reader, size)
	assert.Error(t, err)
}

func TestStartDeepProcess_FromFinishedCheckpoint(t *testing.T) {
	fb := newFakeBackend()
	fb.statusScript = doneScript("/download/abc123")
	fb.deepScript = []api.StatusResponse{
		{Stage: stage.StageCheck},
		{Stage: stage.StagePoll, Progress: 0.4},
		{Stage: stage.StageDone, Progress: 1.0},
	}
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	task, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	first := log.waitTerminal(t)
	require.Equal(t, model.PhaseFinished, first.Phase)
	require.Equal(t, model.CheckpointMerged, first.Checkpoint)

	require.NoError(t, svc.StartDeepProcess(task.ID))

	log.waitFor(t, func(s model.State) bool {
		return s.Phase == model.PhaseWaiting && s.Wait == model.WaitServer
	})
	second := log.waitFor(t, func(s model.State) bool {
		return s.Phase == model.PhaseFinished && s.Checkpoint == model.CheckpointDeepDone
	})
	assert.Equal(t, "/download/abc123", second.ResultRef, "first pipeline result survives deep processing")

	fb.mu.Lock()
	starts := append([]string(nil), fb.deepStarts...)
	fb.mu.Unlock()
	assert.Equal(t, []string{"abc123"}, starts)
}

func TestStartDeepProcess_RequiresFinishedCheckpoint(t *testing.T) {
	fb := newFakeBackend()
	fb.initErr = errors.New("backend down")
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	task, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)
	log.waitTerminal(t)

	assert.Error(t, svc.StartDeepProcess(task.ID))
	assert.Error(t, svc.StartDeepProcess("task-unknown"))
}

func TestIngest_AutoProcessChainsPipelines(t *testing.T) {
	fb := newFakeBackend()
	fb.statusScript = doneScript("/download/abc123")
	fb.deepScript = []api.StatusResponse{
		{Stage: stage.StageCheck},
		{Stage: stage.StageDone, Progress: 1.0},
	}
	opts := testOptions()
	opts.AutoProcess = true
	svc, log, _ := newTestService(fb, opts)

	reader, size := payload(250)
	_, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)

	final := log.waitFor(t, func(s model.State) bool {
		return s.Phase == model.PhaseFinished && s.Checkpoint == model.CheckpointDeepDone
	})
	assert.Equal(t, "/download/abc123", final.ResultRef)

	fb.mu.Lock()
	starts := len(fb.deepStarts)
	fb.mu.Unlock()
	assert.Equal(t, 1, starts)
}

func TestRemove(t *testing.T) {
	fb := newFakeBackend()
	fb.blockUploads = make(chan struct{})
	svc, log, _ := newTestService(fb, testOptions())

	reader, size := payload(250)
	task, err := svc.Ingest(serviceIdentity(), reader, size)
	require.NoError(t, err)
	<-fb.started

	assert.Error(t, svc.Remove(task.ID), "active tasks cannot be removed")

	require.NoError(t, svc.Cancel(task.ID))
	log.waitTerminal(t)

	require.NoError(t, svc.Remove(task.ID))
	_, exists := svc.Task(task.ID)
	assert.False(t, exists)
}
