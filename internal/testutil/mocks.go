package testutil

import (
	"context"
	"smd/internal/models"
	"smd/internal/providers"
	"smd/internal/structures"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// CountLogs returns the number of records at the given level.
func (m *MockLogger) CountLogs(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockMonitorService implements services.MonitorServiceInterface.
type MockMonitorService struct {
	mu              sync.Mutex
	Sessions        map[string]models.FeedSession
	Global          models.GlobalStats
	StartCalls      []string
	StopCalls       []string
	StartErr        error
	StopErr         error
	RecordingErr    error
	RecordingCalls  []RecordingCall
	StopAllCalls    int
	RefreshCalls    int
	StreamingActive int
}

type RecordingCall struct {
	CameraID  string
	Recording bool
}

func (m *MockMonitorService) CreateSessions(cameras []structures.CameraDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Sessions == nil {
		m.Sessions = make(map[string]models.FeedSession)
	}
	for _, cam := range cameras {
		m.Sessions[cam.ID] = models.FeedSession{
			CameraID:     cam.ID,
			CameraName:   cam.Name,
			Location:     cam.Location,
			CameraStatus: cam.Status,
		}
	}
}

func (m *MockMonitorService) StartSession(_ context.Context, cameraID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls = append(m.StartCalls, cameraID)
	return m.StartErr
}

func (m *MockMonitorService) StopSession(cameraID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls = append(m.StopCalls, cameraID)
	return m.StopErr
}

func (m *MockMonitorService) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopAllCalls++
}

func (m *MockMonitorService) Get(cameraID string) (models.FeedSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Sessions[cameraID]
	return s, ok
}

func (m *MockMonitorService) All() []models.FeedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FeedSession, 0, len(m.Sessions))
	for _, s := range m.Sessions {
		out = append(out, s)
	}
	return out
}

func (m *MockMonitorService) GlobalStats() models.GlobalStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Global
}

func (m *MockMonitorService) RefreshGlobal() models.GlobalStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshCalls++
	return m.Global
}

func (m *MockMonitorService) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sessions)
}

func (m *MockMonitorService) StreamingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StreamingActive
}

func (m *MockMonitorService) RefreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RefreshCalls
}

func (m *MockMonitorService) SetRecording(cameraID string, recording bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordingCalls = append(m.RecordingCalls, RecordingCall{CameraID: cameraID, Recording: recording})
	if m.RecordingErr != nil {
		return m.RecordingErr
	}
	if s, ok := m.Sessions[cameraID]; ok {
		s.IsRecording = recording
		m.Sessions[cameraID] = s
	}
	return nil
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu                sync.Mutex
	RequestsTotal     int
	FramesProcessed   map[string]int
	Violations        map[string]int
	Malformed         map[string]int
	FPSValues         map[string]float64
	AlertsEmitted     map[string]int
	AlertsThrottled   int
	RecordingsActive  int
	PersistenceCalls  int
	CacheHitsCount    int
	CacheMissesCount  int
	DurationsObserved int
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestsTotal++
}

func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DurationsObserved++
}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHitsCount++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMissesCount++
}

func (m *MockMetrics) IncFramesProcessed(camera string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FramesProcessed == nil {
		m.FramesProcessed = make(map[string]int)
	}
	m.FramesProcessed[camera]++
}

func (m *MockMetrics) IncViolations(camera string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Violations == nil {
		m.Violations = make(map[string]int)
	}
	m.Violations[camera]++
}

func (m *MockMetrics) IncMalformedMessages(camera string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Malformed == nil {
		m.Malformed = make(map[string]int)
	}
	m.Malformed[camera]++
}

func (m *MockMetrics) SetSessionFPS(camera string, fps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FPSValues == nil {
		m.FPSValues = make(map[string]float64)
	}
	m.FPSValues[camera] = fps
}

func (m *MockMetrics) IncAlertsEmitted(severity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AlertsEmitted == nil {
		m.AlertsEmitted = make(map[string]int)
	}
	m.AlertsEmitted[severity]++
}

func (m *MockMetrics) IncAlertsThrottled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlertsThrottled++
}

func (m *MockMetrics) SetRecordingsActive(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordingsActive = count
}

func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistenceCalls++
}

func (m *MockMetrics) PersistenceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PersistenceCalls
}

// MockCache implements providers.CacheProviderInterface on a plain map.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
	Sets int
	Gets int
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Data == nil {
		m.Data = make(map[string][]byte)
	}
	m.Data[key] = value
	m.Sets++
}
