package models

import "time"

// SessionStats holds the rolling per-session metrics. Records are plain
// values: every update produces a new value that replaces the old one.
type SessionStats struct {
	FPS             float64   `json:"fps"`
	ViolationCount  int       `json:"violation_count"`
	TotalFrames     int       `json:"total_frames"`
	PersonCount     int       `json:"person_count"`
	StreamStartedAt time.Time `json:"stream_started_at"`
	LastFrameAt     time.Time `json:"last_frame_at"`
}

// FeedSession is the full monitoring state tracked for one camera.
// LastFrame holds the most recent decoded raster payload (JPEG bytes);
// frame payloads are immutable once stored, so copies of the record may
// share the slice.
type FeedSession struct {
	CameraID      string        `json:"camera_id"`
	CameraName    string        `json:"camera_name"`
	Location      string        `json:"location,omitempty"`
	CameraStatus  string        `json:"camera_status"`
	IsStreaming   bool          `json:"is_streaming"`
	StatusText    string        `json:"status_text"`
	LastSeenAt    time.Time     `json:"last_seen_at"`
	LiveDetection LiveDetection `json:"live_detection"`
	Stats         SessionStats  `json:"stats"`
	IsRecording   bool          `json:"is_recording"`
	LastFrame     []byte        `json:"-"`
}

// GlobalStats is derived by folding over all streaming sessions.
// It is never stored.
type GlobalStats struct {
	TotalViolations int     `json:"total_violations"`
	TotalFrames     int     `json:"total_frames"`
	AverageFPS      float64 `json:"average_fps"`
	ComplianceRate  float64 `json:"compliance_rate"`
}

// Screenshot is an in-memory capture of one session's latest frame.
// It lives only for the current process lifetime.
type Screenshot struct {
	ID              string    `json:"id"`
	CameraID        string    `json:"camera_id"`
	CameraName      string    `json:"camera_name"`
	CapturedAt      time.Time `json:"captured_at"`
	DetectedClasses []string  `json:"detected_classes"`
	IsCompliant     bool      `json:"is_compliant"`
	ViolationType   string    `json:"violation_type,omitempty"`
	Payload         []byte    `json:"-"`
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Incident is created locally or proposed by the backend, persisted by
// the external incident collaborator and echoed back with a server id.
type Incident struct {
	ID            string    `json:"id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Severity      Severity  `json:"severity"`
	CameraID      string    `json:"camera_id"`
	Screenshot    string    `json:"screenshot,omitempty"`
	ScreenshotURL string    `json:"screenshot_url,omitempty"`
	IncidentTime  time.Time `json:"incident_time"`
}

// SessionRun is one finished streaming run's cumulative stats, kept for
// the history endpoint.
type SessionRun struct {
	CameraID  string       `json:"camera_id"`
	Stats     SessionStats `json:"stats"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}
