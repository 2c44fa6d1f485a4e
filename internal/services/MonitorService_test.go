package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smd/internal/models"
	"smd/internal/stream"
	"smd/internal/structures"
	"smd/internal/testutil"
)

// fakeSource implements EventSource with a hand-fed event channel.
type fakeSource struct {
	events    chan stream.Event
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan stream.Event, 16)}
}

func (f *fakeSource) Events() <-chan stream.Event { return f.events }

func (f *fakeSource) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.events)
	})
}

func (f *fakeSource) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// lingeringSource models a channel whose read loop outlives Close, the
// way a websocket keeps delivering messages it had already buffered.
type lingeringSource struct {
	events chan stream.Event
	mu     sync.Mutex
	closed bool
}

func newLingeringSource() *lingeringSource {
	return &lingeringSource{events: make(chan stream.Event, 16)}
}

func (l *lingeringSource) Events() <-chan stream.Event { return l.events }

func (l *lingeringSource) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *lingeringSource) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

type recordingArchive struct {
	mu   sync.Mutex
	runs []models.SessionRun
}

func (r *recordingArchive) Append(run models.SessionRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func (r *recordingArchive) Runs() []models.SessionRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SessionRun(nil), r.runs...)
}

func testConfig(policy string) *structures.Config {
	return &structures.Config{
		Monitor: structures.MonitorConfig{
			BackendURL:      "ws://127.0.0.1:0",
			ViolationPolicy: policy,
			Cameras: []structures.CameraDescriptor{
				{ID: "cam-1", Name: "Entrance", Location: "Gate A", Status: "active"},
				{ID: "cam-2", Name: "Dock", Location: "Dock 1", Status: "active"},
			},
		},
	}
}

func newTestService(t *testing.T, policy string) (*MonitorService, *recordingArchive, map[string]*fakeSource) {
	t.Helper()
	archive := &recordingArchive{}
	ms, err := NewMonitorService(testConfig(policy), &testutil.MockLogger{}, nil, archive)
	require.NoError(t, err)

	sources := make(map[string]*fakeSource)
	var mu sync.Mutex
	ms.open = func(_ context.Context, cameraID string) (EventSource, error) {
		src := newFakeSource()
		mu.Lock()
		sources[cameraID] = src
		mu.Unlock()
		return src, nil
	}
	return ms, archive, sources
}

func frameEvent(res *models.DetectionResult) stream.Event {
	return stream.Event{Kind: stream.EventFrame, Frame: []byte{0xff, 0xd8}, Detection: res}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestMonitorService_EnrollsConfiguredCameras(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")

	assert.Equal(t, 2, ms.SessionCount())
	session, ok := ms.Get("cam-1")
	require.True(t, ok)
	assert.False(t, session.IsStreaming)
	assert.Equal(t, "Not streaming", session.StatusText)
	assert.True(t, session.LiveDetection.IsCompliant)
}

func TestMonitorService_RejectsUnknownPolicy(t *testing.T) {
	_, err := NewMonitorService(testConfig("maybe"), &testutil.MockLogger{}, nil, &recordingArchive{})
	assert.Error(t, err)
}

func TestMonitorService_StartUnknownSession(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")
	err := ms.StartSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.Equal(t, 2, ms.SessionCount())
}

func TestMonitorService_StartTwiceFails(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	err := ms.StartSession(context.Background(), "cam-1")
	assert.ErrorIs(t, err, ErrAlreadyStreaming)
	ms.StopAll()
}

func TestMonitorService_OpenFailureMarksSession(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")
	ms.open = func(_ context.Context, _ string) (EventSource, error) {
		return nil, errors.New("connection refused")
	}

	err := ms.StartSession(context.Background(), "cam-1")
	require.Error(t, err)

	session, _ := ms.Get("cam-1")
	assert.False(t, session.IsStreaming)
	assert.Equal(t, "Connection failed", session.StatusText)
}

func TestMonitorService_FramesUpdateStats(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	src := sources["cam-1"]
	for i := 0; i < 3; i++ {
		src.events <- frameEvent(&models.DetectionResult{
			IsCompliant:  true,
			SafetyStatus: "All workers compliant",
			PersonCount:  2,
		})
	}

	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.TotalFrames == 3
	})

	session, _ := ms.Get("cam-1")
	assert.Equal(t, "Streaming", session.StatusText)
	assert.Equal(t, 2, session.Stats.PersonCount)
	assert.NotNil(t, session.LastFrame)
	ms.StopAll()
}

func TestMonitorService_RestartResetsStats(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	sources["cam-1"].events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 1})
	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.TotalFrames == 1
	})

	require.NoError(t, ms.StopSession("cam-1"))
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	session, _ := ms.Get("cam-1")
	assert.Equal(t, 0, session.Stats.TotalFrames)
	assert.Equal(t, 0, session.Stats.ViolationCount)
	assert.Nil(t, session.LastFrame)
	ms.StopAll()
}

func TestMonitorService_StopLeavesOthersAlone(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	require.NoError(t, ms.StartSession(context.Background(), "cam-2"))

	sources["cam-2"].events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 1})
	waitFor(t, func() bool {
		s, _ := ms.Get("cam-2")
		return s.Stats.TotalFrames == 1
	})

	require.NoError(t, ms.StopSession("cam-1"))

	one, _ := ms.Get("cam-1")
	two, _ := ms.Get("cam-2")
	assert.False(t, one.IsStreaming)
	assert.True(t, two.IsStreaming)
	assert.Equal(t, 1, two.Stats.TotalFrames)
	ms.StopAll()
}

func TestMonitorService_StopKeepsCumulativeStats(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	sources["cam-1"].events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 1})
	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.TotalFrames == 1
	})

	require.NoError(t, ms.StopSession("cam-1"))

	session, _ := ms.Get("cam-1")
	assert.False(t, session.IsStreaming)
	assert.Equal(t, 1, session.Stats.TotalFrames)
	assert.Equal(t, "Monitoring stopped", session.StatusText)
	assert.Equal(t, models.StoppedDetection(), session.LiveDetection)
}

func TestMonitorService_StopIsIdempotent(t *testing.T) {
	ms, archive, _ := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	require.NoError(t, ms.StopSession("cam-1"))
	require.NoError(t, ms.StopSession("cam-1"))

	ms.wg.Wait()
	assert.Len(t, archive.Runs(), 1)
}

func TestMonitorService_StopUnknownSession(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")
	assert.ErrorIs(t, ms.StopSession("ghost"), ErrUnknownSession)
}

func TestMonitorService_ArchivesFinishedRun(t *testing.T) {
	ms, archive, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	sources["cam-1"].events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 1})
	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.TotalFrames == 1
	})
	require.NoError(t, ms.StopSession("cam-1"))

	runs := archive.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "cam-1", runs[0].CameraID)
	assert.Equal(t, 1, runs[0].Stats.TotalFrames)
}

func TestMonitorService_ChannelCloseStopsSession(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	// Transport failure: the source closes its event channel.
	sources["cam-1"].Close()

	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return !s.IsStreaming
	})

	session, _ := ms.Get("cam-1")
	assert.Equal(t, "Connection closed", session.StatusText)

	// The camera can be restarted afterwards.
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	ms.StopAll()
}

func TestMonitorService_ErrorEventClosesChannelAndStopsSession(t *testing.T) {
	ms, archive, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	sources["cam-1"].events <- stream.Event{Kind: stream.EventError, Message: "Connection lost"}

	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return !s.IsStreaming
	})

	session, _ := ms.Get("cam-1")
	assert.Equal(t, "Connection lost", session.StatusText)
	assert.True(t, sources["cam-1"].IsClosed(), "errored channel must be closed")

	// The camera can be restarted, and only one run was archived.
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	assert.Equal(t, 1, ms.StreamingCount())
	ms.StopAll()
	assert.Len(t, archive.Runs(), 2)
}

func TestMonitorService_StaleChannelCannotTouchRestartedRun(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")

	old := newLingeringSource()
	next := newFakeSource()
	queue := []EventSource{old, next}
	var mu sync.Mutex
	ms.open = func(_ context.Context, _ string) (EventSource, error) {
		mu.Lock()
		defer mu.Unlock()
		src := queue[0]
		queue = queue[1:]
		return src, nil
	}

	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	require.NoError(t, ms.StopSession("cam-1"))
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	require.True(t, old.IsClosed())

	// The previous run's channel lags behind its Close and still emits:
	// nothing from it may reach the fresh run.
	old.events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 9})
	next.events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 2})

	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.TotalFrames == 1
	})
	session, _ := ms.Get("cam-1")
	assert.Equal(t, 2, session.Stats.PersonCount)

	// The stale loop's exit must not stop the fresh run either.
	close(old.events)
	next.events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 2})
	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.TotalFrames == 2
	})
	session, _ = ms.Get("cam-1")
	assert.True(t, session.IsStreaming)
	ms.StopAll()
}

func TestMonitorService_StatusEventUpdatesText(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	sources["cam-1"].events <- stream.Event{Kind: stream.EventStatus, Message: "Model warming up"}

	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.StatusText == "Model warming up"
	})
	ms.StopAll()
}

func TestMonitorService_MalformedFrameOnlyRefreshesLiveness(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	metrics := &testutil.MockMetrics{}
	ms.AttachMetrics(metrics)
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	// No frame payload and no detection: liveness only.
	sources["cam-1"].events <- stream.Event{Kind: stream.EventFrame}

	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return !s.LastSeenAt.IsZero()
	})

	session, _ := ms.Get("cam-1")
	assert.Equal(t, 0, session.Stats.TotalFrames)
	assert.Equal(t, 1, metrics.Malformed["cam-1"])
	ms.StopAll()
}

func TestMonitorService_ViolationsFeedMetrics(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")
	metrics := &testutil.MockMetrics{}
	ms.AttachMetrics(metrics)
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	src := sources["cam-1"]
	src.events <- frameEvent(&models.DetectionResult{IsCompliant: true, PersonCount: 1})
	src.events <- frameEvent(&models.DetectionResult{IsCompliant: false, PersonCount: 1, TotalViolationCount: 1})

	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.ViolationCount == 1
	})

	assert.Equal(t, 1, metrics.Violations["cam-1"])
	assert.Equal(t, 2, metrics.FramesProcessed["cam-1"])
	ms.StopAll()
}

func TestMonitorService_IncidentEventsAreForwarded(t *testing.T) {
	ms, _, sources := newTestService(t, "edge")

	var mu sync.Mutex
	var got []string
	ms.AttachIncidentSink(incidentSinkFunc(func(cameraID string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cameraID+":"+string(payload))
	}))

	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	sources["cam-1"].events <- stream.Event{Kind: stream.EventIncident, Incident: []byte(`{"title":"x"}`)}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	assert.Equal(t, `cam-1:{"title":"x"}`, got[0])
	mu.Unlock()
	ms.StopAll()
}

type incidentSinkFunc func(cameraID string, payload []byte)

func (f incidentSinkFunc) AcceptBackendIncident(cameraID string, payload []byte) {
	f(cameraID, payload)
}

func TestMonitorService_SetRecording(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")

	assert.ErrorIs(t, ms.SetRecording("ghost", true), ErrUnknownSession)
	assert.ErrorIs(t, ms.SetRecording("cam-1", true), ErrNotStreaming)

	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	require.NoError(t, ms.SetRecording("cam-1", true))

	session, _ := ms.Get("cam-1")
	assert.True(t, session.IsRecording)
	ms.StopAll()
}

func TestMonitorService_GlobalStats(t *testing.T) {
	ms, _, sources := newTestService(t, "total")
	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))

	sources["cam-1"].events <- frameEvent(&models.DetectionResult{IsCompliant: false, PersonCount: 1, TotalViolationCount: 1})
	waitFor(t, func() bool {
		s, _ := ms.Get("cam-1")
		return s.Stats.TotalFrames == 1
	})

	global := ms.GlobalStats()
	assert.Equal(t, 1, global.TotalFrames)
	assert.Equal(t, 1, global.TotalViolations)
	assert.Equal(t, float64(0), global.ComplianceRate)
	ms.StopAll()
}

func TestMonitorService_StreamingCount(t *testing.T) {
	ms, _, _ := newTestService(t, "edge")
	assert.Equal(t, 0, ms.StreamingCount())

	require.NoError(t, ms.StartSession(context.Background(), "cam-1"))
	assert.Equal(t, 1, ms.StreamingCount())

	ms.StopAll()
	assert.Equal(t, 0, ms.StreamingCount())
}
