package alerts

import (
	"smd/internal/models"
	"smd/internal/providers"
	"smd/internal/structures"
	"time"

	"go.uber.org/atomic"
)

const DefaultCooldown = 3 * time.Second

// Tone describes the audible notification synthesized for a severity.
// Pitch and beep count strictly decrease with severity.
type Tone struct {
	Severity    models.Severity `json:"severity"`
	FrequencyHz int             `json:"frequency_hz"`
	Beeps       int             `json:"beeps"`
}

var tones = map[models.Severity]Tone{
	models.SeverityCritical: {Severity: models.SeverityCritical, FrequencyHz: 1600, Beeps: 4},
	models.SeverityHigh:     {Severity: models.SeverityHigh, FrequencyHz: 1200, Beeps: 3},
	models.SeverityMedium:   {Severity: models.SeverityMedium, FrequencyHz: 800, Beeps: 2},
	models.SeverityLow:      {Severity: models.SeverityLow, FrequencyHz: 500, Beeps: 1},
}

// ToneFor returns the tone mapping for a severity. Unknown severities
// map to the low tone.
func ToneFor(severity models.Severity) Tone {
	if t, ok := tones[severity]; ok {
		return t
	}
	return tones[models.SeverityLow]
}

// Preferences is the persisted user-level alert state.
type Preferences struct {
	Muted    bool          `json:"muted"`
	Cooldown time.Duration `json:"cooldown"`
}

// Throttler rate-limits audible violation notifications per installation.
// The cooldown timestamp is system-wide, not per camera, so many cameras
// violating at once cannot stack an audio storm. No other component
// touches this state.
type Throttler struct {
	cooldown    atomic.Duration // Apply can change it while notifies run
	lastAlertAt atomic.Int64    // unix nanoseconds, zero until the first alert
	muted       atomic.Bool
	sinks       []Sink
	metrics     providers.MetricsProviderInterface
	now         func() time.Time
}

func NewThrottler(conf *structures.Config, sinks []Sink, metrics providers.MetricsProviderInterface) *Throttler {
	cooldown := conf.Alerts.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	t := &Throttler{
		sinks:   sinks,
		metrics: metrics,
		now:     time.Now,
	}
	t.cooldown.Store(cooldown)
	return t
}

// Notify emits one audible tone for the severity unless muted or still
// inside the cooldown window. Returns whether a tone was emitted.
func (t *Throttler) Notify(severity models.Severity) bool {
	if t.muted.Load() {
		return false
	}

	now := t.now().UnixNano()
	last := t.lastAlertAt.Load()
	if last != 0 && now-last < t.cooldown.Load().Nanoseconds() {
		t.metrics.IncAlertsThrottled()
		return false
	}
	if !t.lastAlertAt.CompareAndSwap(last, now) {
		// Lost the race to a concurrent notify inside the same window.
		t.metrics.IncAlertsThrottled()
		return false
	}

	tone := ToneFor(severity)
	for _, sink := range t.sinks {
		sink.Emit(tone)
	}
	t.metrics.IncAlertsEmitted(string(severity))
	return true
}

func (t *Throttler) SetMuted(muted bool) {
	t.muted.Store(muted)
}

func (t *Throttler) Muted() bool {
	return t.muted.Load()
}

// Snapshot returns the persistable preferences state.
func (t *Throttler) Snapshot() Preferences {
	return Preferences{
		Muted:    t.muted.Load(),
		Cooldown: t.cooldown.Load(),
	}
}

// Apply restores persisted preferences. The cooldown is only taken over
// when the stored value is sane.
func (t *Throttler) Apply(prefs Preferences) {
	t.muted.Store(prefs.Muted)
	if prefs.Cooldown > 0 {
		t.cooldown.Store(prefs.Cooldown)
	}
}
