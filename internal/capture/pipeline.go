package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smd/internal/models"
	"smd/internal/providers"
	"smd/internal/structures"
)

var (
	ErrNoFrameAvailable = errors.New("no frame has been decoded for this session yet")
	ErrAlreadyRecording = errors.New("recording already in progress for this session")
	ErrUnknownSession   = errors.New("unknown camera session")
	ErrNotStreaming     = errors.New("session is not streaming")
)

const (
	maxGallerySize   = 128
	defaultFrameRate = 10
)

// SessionReader is the narrow view of the monitor service the pipeline
// needs: session snapshots for frames, and the recording flag.
type SessionReader interface {
	Get(cameraID string) (models.FeedSession, bool)
	SetRecording(cameraID string, recording bool) error
}

// Pipeline implements screenshots and recordings over the sessions'
// most recent decoded frames. Screenshots live only in process memory;
// recordings are encoded to downloadable files through the negotiated
// codec.
type Pipeline struct {
	conf     *structures.Config
	sessions SessionReader
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface

	mu        sync.Mutex
	gallery   []models.Screenshot
	recorders map[string]*recorder

	negotiate  func() (Codec, error)
	newEncoder func(codec Codec, path string, frameRate int) (encoderProc, error)

	codecOnce sync.Once
	codec     Codec
	codecErr  error
}

func NewPipeline(conf *structures.Config, sessions SessionReader, logger providers.Logger, metrics providers.MetricsProviderInterface) *Pipeline {
	p := &Pipeline{
		conf:      conf,
		sessions:  sessions,
		logger:    logger,
		metrics:   metrics,
		recorders: make(map[string]*recorder),
	}
	p.negotiate = func() (Codec, error) {
		return negotiateCodec(conf.Recording.FFmpegPath)
	}
	p.newEncoder = func(codec Codec, path string, frameRate int) (encoderProc, error) {
		return startFFmpeg(conf.Recording.FFmpegPath, codec, path, frameRate)
	}
	return p
}

// Screenshot captures the session's most recent decoded frame together
// with the live detection state at capture time. Fails before the first
// frame has arrived.
func (p *Pipeline) Screenshot(cameraID string) (models.Screenshot, error) {
	session, ok := p.sessions.Get(cameraID)
	if !ok {
		return models.Screenshot{}, ErrUnknownSession
	}
	if len(session.LastFrame) == 0 {
		return models.Screenshot{}, ErrNoFrameAvailable
	}

	frame, err := decodeFrame(session.LastFrame)
	if err != nil {
		return models.Screenshot{}, fmt.Errorf("decode frame for camera %s: %w", cameraID, err)
	}

	surf := &surface{}
	surf.render(frame)
	payload, err := surf.encodeJPEG()
	if err != nil {
		return models.Screenshot{}, err
	}

	shot := models.Screenshot{
		ID:              uuid.NewString(),
		CameraID:        session.CameraID,
		CameraName:      session.CameraName,
		CapturedAt:      time.Now(),
		DetectedClasses: session.LiveDetection.DetectedClasses,
		IsCompliant:     session.LiveDetection.IsCompliant,
		ViolationType:   session.LiveDetection.ViolationType,
		Payload:         payload,
	}

	p.mu.Lock()
	p.gallery = append(p.gallery, shot)
	if len(p.gallery) > maxGallerySize {
		p.gallery = p.gallery[len(p.gallery)-maxGallerySize:]
	}
	p.mu.Unlock()

	return shot, nil
}

// Gallery returns a snapshot of the in-memory screenshot list, newest last.
func (p *Pipeline) Gallery() []models.Screenshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Screenshot, len(p.gallery))
	copy(out, p.gallery)
	return out
}

func (p *Pipeline) GetScreenshot(id string) (models.Screenshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, shot := range p.gallery {
		if shot.ID == id {
			return shot, true
		}
	}
	return models.Screenshot{}, false
}

// ExportFilename names a screenshot download.
func ExportFilename(shot models.Screenshot) string {
	return fmt.Sprintf("screenshot-%s-%s.jpg", sanitizeName(shot.CameraName), shot.CapturedAt.Format("2006-01-02_15-04-05"))
}

// recorder drives one session's recording: its own surface, its own
// encoder process, halted by its next tick once the session stops.
type recorder struct {
	cameraID string
	path     string
	codec    Codec
	proc     encoderProc
	surface  *surface
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// StartRecording negotiates a codec and starts the per-tick capture
// loop for the session. Returns the output file path.
func (p *Pipeline) StartRecording(cameraID string) (string, error) {
	session, ok := p.sessions.Get(cameraID)
	if !ok {
		return "", ErrUnknownSession
	}
	if !session.IsStreaming {
		return "", ErrNotStreaming
	}

	p.codecOnce.Do(func() {
		p.codec, p.codecErr = p.negotiate()
		if p.codecErr == nil {
			p.logger.Infof(providers.TypeApp, "Recording codec negotiated: %s (.%s)", p.codec.Name, p.codec.Ext)
		}
	})
	if p.codecErr != nil {
		return "", p.codecErr
	}

	if err := os.MkdirAll(p.conf.Recording.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create recording dir: %w", err)
	}

	timestamp := strings.NewReplacer(":", "", ".", "").Replace(time.Now().Format(time.RFC3339))
	path := filepath.Join(p.conf.Recording.Dir, fmt.Sprintf("recording-%s-%s.%s", sanitizeName(session.CameraName), timestamp, p.codec.Ext))

	frameRate := p.conf.Recording.FrameRate
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}

	// The busy check and the slot insert stay in one critical section so
	// two concurrent starts can never leak an encoder process.
	p.mu.Lock()
	if _, busy := p.recorders[cameraID]; busy {
		p.mu.Unlock()
		return "", ErrAlreadyRecording
	}
	proc, err := p.newEncoder(p.codec, path, frameRate)
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	rec := &recorder{
		cameraID: cameraID,
		path:     path,
		codec:    p.codec,
		proc:     proc,
		surface:  &surface{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.recorders[cameraID] = rec
	active := len(p.recorders)
	p.mu.Unlock()

	_ = p.sessions.SetRecording(cameraID, true)
	p.metrics.SetRecordingsActive(active)
	p.logger.Infof(providers.TypeStream, "camera %s: recording to %s", cameraID, path)

	go p.captureLoop(rec, time.Second/time.Duration(frameRate))

	return path, nil
}

// captureLoop copies the session's latest frame onto the recorder's own
// surface once per tick and feeds the encoder. It halts on its next
// tick when the session stops streaming.
func (p *Pipeline) captureLoop(rec *recorder, tick time.Duration) {
	defer close(rec.done)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-rec.stop:
			return
		case <-ticker.C:
		}

		session, ok := p.sessions.Get(rec.cameraID)
		if !ok || !session.IsStreaming {
			go p.finish(rec.cameraID)
			return
		}
		if len(session.LastFrame) == 0 {
			continue
		}

		frame, err := decodeFrame(session.LastFrame)
		if err != nil {
			continue
		}
		rec.surface.render(frame)
		payload, err := rec.surface.encodeJPEG()
		if err != nil {
			continue
		}
		if _, err := rec.proc.Write(payload); err != nil {
			p.logger.Warnf(providers.TypeStream, "camera %s: encoder rejected frame: %s", rec.cameraID, err)
			go p.finish(rec.cameraID)
			return
		}
	}
}

// StopRecording finalizes the session's encoder and returns the output
// path. Safe to call when recording was never started: it is a no-op.
func (p *Pipeline) StopRecording(cameraID string) (string, error) {
	return p.finish(cameraID)
}

func (p *Pipeline) finish(cameraID string) (string, error) {
	p.mu.Lock()
	rec, ok := p.recorders[cameraID]
	if ok {
		delete(p.recorders, cameraID)
	}
	active := len(p.recorders)
	p.mu.Unlock()

	if !ok {
		return "", nil
	}

	rec.stopOnce.Do(func() { close(rec.stop) })
	<-rec.done

	if err := rec.proc.Finish(); err != nil {
		p.logger.Warnf(providers.TypeStream, "camera %s: encoder exited with error: %s", cameraID, err)
	}

	_ = p.sessions.SetRecording(cameraID, false)
	p.metrics.SetRecordingsActive(active)
	p.logger.Infof(providers.TypeStream, "camera %s: recording finalized: %s", cameraID, rec.path)

	return rec.path, nil
}

// IsRecording reports whether the session currently has a live recorder.
func (p *Pipeline) IsRecording(cameraID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.recorders[cameraID]
	return ok
}

// StopAll finalizes every live recording; used on shutdown.
func (p *Pipeline) StopAll() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.recorders))
	for id := range p.recorders {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		_, _ = p.finish(id)
	}
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "camera"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
