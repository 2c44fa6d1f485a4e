package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smd/internal/alerts"
	"smd/internal/models"
	"smd/internal/providers"
	"smd/internal/stream"
	"smd/internal/structures"
)

var (
	ErrUnknownSession   = errors.New("unknown camera session")
	ErrAlreadyStreaming = errors.New("session is already streaming")
	ErrNotStreaming     = errors.New("session is not streaming")
)

// EventSource is what the service consumes per session; satisfied by
// *stream.Channel and by test doubles.
type EventSource interface {
	Events() <-chan stream.Event
	Close()
}

// ChannelOpener dials the backend stream endpoint for one camera.
type ChannelOpener func(ctx context.Context, cameraID string) (EventSource, error)

// RunArchiver receives the cumulative stats of finished streaming runs.
type RunArchiver interface {
	Append(run models.SessionRun)
}

// IncidentSink receives backend-proposed incidents forwarded unchanged
// from a session's channel.
type IncidentSink interface {
	AcceptBackendIncident(cameraID string, payload []byte)
}

type MonitorServiceInterface interface {
	CreateSessions(cameras []structures.CameraDescriptor)
	StartSession(ctx context.Context, cameraID string) error
	StopSession(cameraID string) error
	StopAll()
	Get(cameraID string) (models.FeedSession, bool)
	All() []models.FeedSession
	GlobalStats() models.GlobalStats
	RefreshGlobal() models.GlobalStats
	SessionCount() int
	StreamingCount() int
	SetRecording(cameraID string, recording bool) error
}

// MonitorService owns the session store and one consume loop per
// streaming session. Every store mutation is a whole-record replace, so
// one camera's updates can never corrupt another's state; per-session
// event order is preserved by the single reader per channel.
type MonitorService struct {
	conf      *structures.Config
	store     *models.SessionStore
	logger    providers.Logger
	throttler *alerts.Throttler
	archive   RunArchiver
	incidents IncidentSink
	policy    models.ViolationPolicy
	open      ChannelOpener
	metrics   providers.MetricsProviderInterface
	now       func() time.Time

	mu       sync.Mutex
	channels map[string]EventSource
	wg       sync.WaitGroup
}

func NewMonitorService(conf *structures.Config, logger providers.Logger, throttler *alerts.Throttler, archive RunArchiver) (*MonitorService, error) {
	policy, err := models.ParseViolationPolicy(conf.Monitor.ViolationPolicy)
	if err != nil {
		return nil, err
	}

	ms := &MonitorService{
		conf:      conf,
		store:     models.NewSessionStore(),
		logger:    logger,
		throttler: throttler,
		archive:   archive,
		policy:    policy,
		now:       time.Now,
		channels:  make(map[string]EventSource),
	}
	ms.open = func(ctx context.Context, cameraID string) (EventSource, error) {
		return stream.Open(ctx, conf.Monitor.BackendURL, cameraID, logger)
	}
	ms.CreateSessions(conf.Monitor.Cameras)

	return ms, nil
}

// AttachMetrics wires the metrics provider in after construction; the
// provider itself polls this service for its session gauges.
func (ms *MonitorService) AttachMetrics(metrics providers.MetricsProviderInterface) {
	ms.metrics = metrics
}

// AttachIncidentSink wires the consumer of backend-proposed incidents.
func (ms *MonitorService) AttachIncidentSink(sink IncidentSink) {
	ms.incidents = sink
}

// CreateSessions enrolls one idle session per camera. Existing sessions
// for re-listed cameras are recreated in a stopped state.
func (ms *MonitorService) CreateSessions(cameras []structures.CameraDescriptor) {
	for _, cam := range cameras {
		ms.store.Put(models.FeedSession{
			CameraID:      cam.ID,
			CameraName:    cam.Name,
			Location:      cam.Location,
			CameraStatus:  cam.Status,
			LiveDetection: models.StoppedDetection(),
			StatusText:    "Not streaming",
		})
	}
}

func (ms *MonitorService) StartSession(ctx context.Context, cameraID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	session, ok := ms.store.Get(cameraID)
	if !ok {
		return ErrUnknownSession
	}
	if session.IsStreaming {
		return ErrAlreadyStreaming
	}

	src, err := ms.open(ctx, cameraID)
	if err != nil {
		ms.store.Update(cameraID, func(s models.FeedSession) models.FeedSession {
			s.StatusText = "Connection failed"
			return s
		})
		return fmt.Errorf("start session %s: %w", cameraID, err)
	}

	now := ms.now()
	ms.channels[cameraID] = src
	ms.store.Update(cameraID, func(s models.FeedSession) models.FeedSession {
		s.IsStreaming = true
		s.StatusText = "Connecting"
		s.Stats = models.SessionStats{StreamStartedAt: now}
		s.LiveDetection = models.LiveDetection{IsCompliant: true, SafetyStatusText: "Waiting for detections"}
		s.LastFrame = nil
		s.IsRecording = false
		return s
	})

	ms.logger.Infof(providers.TypeStream, "camera %s: session started", cameraID)

	ms.wg.Add(1)
	go ms.consume(cameraID, src)

	return nil
}

func (ms *MonitorService) StopSession(cameraID string) error {
	ms.mu.Lock()
	src := ms.channels[cameraID]
	delete(ms.channels, cameraID)
	ms.mu.Unlock()

	if _, enrolled := ms.store.Get(cameraID); !enrolled {
		return ErrUnknownSession
	}

	if src != nil {
		src.Close()
	}

	ms.markStopped(cameraID, "Monitoring stopped")
	return nil
}

// StopAll closes every streaming session; used on shutdown.
func (ms *MonitorService) StopAll() {
	ms.mu.Lock()
	channels := ms.channels
	ms.channels = make(map[string]EventSource)
	ms.mu.Unlock()

	for cameraID, src := range channels {
		src.Close()
		ms.markStopped(cameraID, "Monitoring stopped")
	}
	ms.wg.Wait()
}

// markStopped flips the session to a stopped state, keeps the
// cumulative stats as last observed, and archives the finished run.
// No-op when the session is already stopped.
func (ms *MonitorService) markStopped(cameraID, statusText string) {
	var run *models.SessionRun
	ms.store.Update(cameraID, func(s models.FeedSession) models.FeedSession {
		if !s.IsStreaming {
			return s
		}
		run = &models.SessionRun{
			CameraID:  cameraID,
			Stats:     s.Stats,
			StartedAt: s.Stats.StreamStartedAt,
			EndedAt:   ms.now(),
		}
		s.IsStreaming = false
		s.StatusText = statusText
		s.LiveDetection = models.StoppedDetection()
		return s
	})

	if run != nil && ms.archive != nil {
		ms.archive.Append(*run)
		ms.logger.Infof(providers.TypeStream, "camera %s: session stopped after %d frames", cameraID, run.Stats.TotalFrames)
	}
}

// owns reports whether src is still the registered channel for cameraID.
func (ms *MonitorService) owns(cameraID string, src EventSource) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.channels[cameraID] == src
}

// release deregisters src if it is still the registered channel for
// cameraID and reports whether this call removed it, so exactly one
// path stops the run it belongs to.
func (ms *MonitorService) release(cameraID string, src EventSource) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.channels[cameraID] != src {
		return false
	}
	delete(ms.channels, cameraID)
	return true
}

// consume drains one session's event stream in arrival order. Every
// event is applied only while src is still the session's registered
// channel; once a stop or restart detaches it, the remaining events
// belong to a finished run and are dropped.
func (ms *MonitorService) consume(cameraID string, src EventSource) {
	defer ms.wg.Done()

	for ev := range src.Events() {
		if !ms.owns(cameraID, src) {
			break
		}
		switch ev.Kind {
		case stream.EventStatus:
			ms.store.Update(cameraID, func(s models.FeedSession) models.FeedSession {
				s.StatusText = ev.Message
				return s
			})
		case stream.EventFrame:
			ms.applyFrame(cameraID, ev)
		case stream.EventError:
			ms.logger.Warnf(providers.TypeStream, "camera %s: %s", cameraID, ev.Message)
			if ms.release(cameraID, src) {
				src.Close()
				ms.markStopped(cameraID, ev.Message)
			}
		case stream.EventIncident:
			if ms.incidents != nil {
				ms.incidents.AcceptBackendIncident(cameraID, ev.Incident)
			}
		}
	}

	// The channel is gone, whether by stop or by transport failure; the
	// session must not stay marked streaming. Releasing first keeps a
	// stale loop from flipping a restarted session's fresh run.
	if ms.release(cameraID, src) {
		src.Close()
		ms.markStopped(cameraID, "Connection closed")
	}
}

// applyFrame merges one frame message into the session record. A frame
// without a usable detection payload only refreshes liveness: stats stay
// untouched and the frame is not counted.
func (ms *MonitorService) applyFrame(cameraID string, ev stream.Event) {
	now := ms.now()
	var violated bool
	var fps float64
	counted := false

	updated := ms.store.Update(cameraID, func(s models.FeedSession) models.FeedSession {
		if !s.IsStreaming {
			return s
		}
		s.LastSeenAt = now
		if ev.Frame != nil {
			s.LastFrame = ev.Frame
			s.StatusText = "Streaming"
		}
		if ev.Detection == nil {
			return s
		}

		prev := s.Stats
		s.Stats = models.UpdateStats(prev, s.LiveDetection, now, ev.Detection, ms.policy)
		s.LiveDetection = models.LiveDetectionFrom(ev.Detection)
		violated = s.Stats.ViolationCount > prev.ViolationCount
		fps = s.Stats.FPS
		counted = true
		return s
	})
	if !updated {
		// Detections for cameras that were never enrolled are dropped,
		// never turned into orphan sessions.
		return
	}

	if ms.metrics != nil {
		if counted {
			ms.metrics.IncFramesProcessed(cameraID)
			ms.metrics.SetSessionFPS(cameraID, fps)
		} else if ev.Frame == nil {
			ms.metrics.IncMalformedMessages(cameraID)
		}
		if violated {
			ms.metrics.IncViolations(cameraID)
		}
	}

	if violated && ms.throttler != nil {
		ms.throttler.Notify(severityFor(ev.Detection))
	}
}

// severityFor grades a violating frame by how many simultaneous
// violations the backend reports.
func severityFor(res *models.DetectionResult) models.Severity {
	switch {
	case res.TotalViolationCount >= 3:
		return models.SeverityCritical
	case res.TotalViolationCount == 2:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func (ms *MonitorService) Get(cameraID string) (models.FeedSession, bool) {
	return ms.store.Get(cameraID)
}

func (ms *MonitorService) All() []models.FeedSession {
	return ms.store.All()
}

func (ms *MonitorService) GlobalStats() models.GlobalStats {
	return models.Aggregate(ms.store.All())
}

// RefreshGlobal recomputes the global fold over the current snapshot.
// Updates arriving mid-fold are picked up on the next pass.
func (ms *MonitorService) RefreshGlobal() models.GlobalStats {
	return models.Aggregate(ms.store.All())
}

func (ms *MonitorService) SessionCount() int {
	return ms.store.Len()
}

func (ms *MonitorService) StreamingCount() int {
	return len(ms.store.Streaming())
}

func (ms *MonitorService) SetRecording(cameraID string, recording bool) error {
	session, ok := ms.store.Get(cameraID)
	if !ok {
		return ErrUnknownSession
	}
	if recording && !session.IsStreaming {
		return ErrNotStreaming
	}
	ms.store.Update(cameraID, func(s models.FeedSession) models.FeedSession {
		s.IsRecording = recording
		return s
	})
	return nil
}
