package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smd/internal/models"
	"smd/internal/structures"
	"smd/internal/testutil"
)

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]models.FeedSession
}

func (s *stubSessions) Get(cameraID string) (models.FeedSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[cameraID]
	return session, ok
}

func (s *stubSessions) SetRecording(cameraID string, recording bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[cameraID]
	if !ok {
		return nil
	}
	session.IsRecording = recording
	s.sessions[cameraID] = session
	return nil
}

func (s *stubSessions) setStreaming(cameraID string, streaming bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.sessions[cameraID]
	session.IsStreaming = streaming
	s.sessions[cameraID] = session
}

// stubEncoder swallows frames and remembers whether it was finalized.
type stubEncoder struct {
	mu       sync.Mutex
	writes   int
	finished bool
}

func (e *stubEncoder) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writes++
	return len(p), nil
}

func (e *stubEncoder) Finish() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = true
	return nil
}

func (e *stubEncoder) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}

func (e *stubEncoder) IsFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

type stubEncoderFactory struct {
	mu       sync.Mutex
	encoders []*stubEncoder
	err      error
}

func (f *stubEncoderFactory) new(_ Codec, _ string, _ int) (encoderProc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	enc := &stubEncoder{}
	f.encoders = append(f.encoders, enc)
	return enc, nil
}

func (f *stubEncoderFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.encoders)
}

func (f *stubEncoderFactory) last() *stubEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.encoders[len(f.encoders)-1]
}

func newRecordingPipeline(t *testing.T, sessions map[string]models.FeedSession) (*Pipeline, *stubSessions, *stubEncoderFactory) {
	t.Helper()
	pipeline, stub := newTestPipeline(t, sessions)
	pipeline.conf.Recording.FrameRate = 50
	factory := &stubEncoderFactory{}
	pipeline.negotiate = func() (Codec, error) {
		return Codec{Name: "h264", Encoder: "libx264", Ext: "mp4"}, nil
	}
	pipeline.newEncoder = factory.new
	return pipeline, stub, factory
}

func waitUntil(t *testing.T, cond func() bool) {
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

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, sessions map[string]models.FeedSession) (*Pipeline, *stubSessions) {
	t.Helper()
	stub := &stubSessions{sessions: sessions}
	conf := &structures.Config{
		Recording: structures.RecordingConfig{Dir: t.TempDir(), FrameRate: 10},
	}
	return NewPipeline(conf, stub, &testutil.MockLogger{}, &testutil.MockMetrics{}), stub
}

func TestScreenshot_UnknownSession(t *testing.T) {
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{})
	_, err := pipeline.Screenshot("ghost")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestScreenshot_BeforeFirstFrame(t *testing.T) {
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true},
	})

	_, err := pipeline.Screenshot("cam-1")
	assert.ErrorIs(t, err, ErrNoFrameAvailable)
	assert.Empty(t, pipeline.Gallery())
}

func TestScreenshot_CapturesFrameAndDetectionState(t *testing.T) {
	frame := encodeTestJPEG(t, 32, 24)
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{
		"cam-1": {
			CameraID:    "cam-1",
			CameraName:  "Entrance",
			IsStreaming: true,
			LastFrame:   frame,
			LiveDetection: models.LiveDetection{
				IsCompliant:     false,
				DetectedClasses: []string{"person", "no-hardhat"},
				ViolationType:   "missing-hardhat",
			},
		},
	})

	shot, err := pipeline.Screenshot("cam-1")
	require.NoError(t, err)

	assert.NotEmpty(t, shot.ID)
	assert.Equal(t, "cam-1", shot.CameraID)
	assert.False(t, shot.IsCompliant)
	assert.Equal(t, []string{"person", "no-hardhat"}, shot.DetectedClasses)
	assert.Equal(t, "missing-hardhat", shot.ViolationType)
	assert.NotEmpty(t, shot.Payload)

	// The payload is a decodable JPEG with the frame's dimensions.
	img, err := decodeFrame(shot.Payload)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}

func TestScreenshot_GalleryAndLookup(t *testing.T) {
	frame := encodeTestJPEG(t, 8, 8)
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true, LastFrame: frame},
	})

	first, err := pipeline.Screenshot("cam-1")
	require.NoError(t, err)
	second, err := pipeline.Screenshot("cam-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	gallery := pipeline.Gallery()
	require.Len(t, gallery, 2)
	assert.Equal(t, first.ID, gallery[0].ID)

	got, ok := pipeline.GetScreenshot(second.ID)
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)

	_, ok = pipeline.GetScreenshot("missing")
	assert.False(t, ok)
}

func TestScreenshot_GalleryIsBounded(t *testing.T) {
	frame := encodeTestJPEG(t, 4, 4)
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true, LastFrame: frame},
	})

	for i := 0; i < maxGallerySize+10; i++ {
		_, err := pipeline.Screenshot("cam-1")
		require.NoError(t, err)
	}
	assert.Len(t, pipeline.Gallery(), maxGallerySize)
}

func TestExportFilename(t *testing.T) {
	shot := models.Screenshot{
		CameraName: "Shop Floor",
		CapturedAt: time.Date(2026, 8, 20, 9, 30, 15, 0, time.UTC),
	}
	assert.Equal(t, "screenshot-Shop-Floor-2026-08-20_09-30-15.jpg", ExportFilename(shot))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Dock-1", sanitizeName("Dock 1"))
	assert.Equal(t, "a-b_c-2", sanitizeName("a/b_c:2"))
	assert.Equal(t, "camera", sanitizeName("   "))
}

func TestStartRecording_UnknownSession(t *testing.T) {
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{})
	_, err := pipeline.StartRecording("ghost")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestStartRecording_NotStreaming(t *testing.T) {
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance"},
	})
	_, err := pipeline.StartRecording("cam-1")
	assert.ErrorIs(t, err, ErrNotStreaming)
}

func TestStartRecording_HaltsWhenStreamingEnds(t *testing.T) {
	frame := encodeTestJPEG(t, 8, 8)
	pipeline, stub, factory := newRecordingPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true, LastFrame: frame},
	})

	_, err := pipeline.StartRecording("cam-1")
	require.NoError(t, err)
	enc := factory.last()
	waitUntil(t, func() bool { return enc.Writes() > 0 })

	stub.setStreaming("cam-1", false)

	waitUntil(t, func() bool { return !pipeline.IsRecording("cam-1") && enc.IsFinished() })
	session, _ := stub.Get("cam-1")
	assert.False(t, session.IsRecording)
}

func TestStopRecording_FinalizesEncoder(t *testing.T) {
	frame := encodeTestJPEG(t, 8, 8)
	pipeline, stub, factory := newRecordingPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true, LastFrame: frame},
	})

	path, err := pipeline.StartRecording("cam-1")
	require.NoError(t, err)
	assert.True(t, pipeline.IsRecording("cam-1"))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "recording-Entrance-"))
	assert.True(t, strings.HasSuffix(path, ".mp4"))

	stopped, err := pipeline.StopRecording("cam-1")
	require.NoError(t, err)
	assert.Equal(t, path, stopped)
	assert.True(t, factory.last().IsFinished())
	assert.False(t, pipeline.IsRecording("cam-1"))

	session, _ := stub.Get("cam-1")
	assert.False(t, session.IsRecording)
}

func TestStartRecording_ConcurrentStartsOnlyOneWins(t *testing.T) {
	frame := encodeTestJPEG(t, 8, 8)
	pipeline, _, factory := newRecordingPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true, LastFrame: frame},
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, busy := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pipeline.StartRecording("cam-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyRecording):
				busy++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, busy)
	assert.Equal(t, 1, factory.count())

	_, err := pipeline.StopRecording("cam-1")
	require.NoError(t, err)
}

func TestStartRecording_CreatesOutputDir(t *testing.T) {
	frame := encodeTestJPEG(t, 8, 8)
	stub := &stubSessions{sessions: map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true, LastFrame: frame},
	}}
	// Fresh install: the recording directory does not exist yet.
	conf := &structures.Config{
		Recording: structures.RecordingConfig{Dir: filepath.Join(t.TempDir(), "recordings"), FrameRate: 50},
	}
	pipeline := NewPipeline(conf, stub, &testutil.MockLogger{}, &testutil.MockMetrics{})
	factory := &stubEncoderFactory{}
	pipeline.negotiate = func() (Codec, error) {
		return Codec{Name: "h264", Encoder: "libx264", Ext: "mp4"}, nil
	}
	pipeline.newEncoder = factory.new

	path, err := pipeline.StartRecording("cam-1")
	require.NoError(t, err)

	info, err := os.Stat(conf.Recording.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, conf.Recording.Dir, filepath.Dir(path))

	_, err = pipeline.StopRecording("cam-1")
	require.NoError(t, err)
}

func TestStartRecording_EncoderFailureReleasesSlot(t *testing.T) {
	frame := encodeTestJPEG(t, 8, 8)
	pipeline, _, factory := newRecordingPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", CameraName: "Entrance", IsStreaming: true, LastFrame: frame},
	})
	factory.err = errors.New("broken pipe")

	_, err := pipeline.StartRecording("cam-1")
	require.Error(t, err)
	assert.False(t, pipeline.IsRecording("cam-1"))

	// The slot is free again: the retry hits the encoder, not a stale
	// busy flag.
	_, err = pipeline.StartRecording("cam-1")
	assert.NotErrorIs(t, err, ErrAlreadyRecording)
}

func TestStopRecording_NeverStartedIsNoOp(t *testing.T) {
	pipeline, _ := newTestPipeline(t, map[string]models.FeedSession{
		"cam-1": {CameraID: "cam-1", IsStreaming: true},
	})

	path, err := pipeline.StopRecording("cam-1")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.False(t, pipeline.IsRecording("cam-1"))
}
