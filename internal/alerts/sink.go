package alerts

import (
	"smd/internal/providers"
	"smd/internal/structures"
)

// Sink receives every emitted tone. The daemon is headless: it is the
// sink's job to get the tone to something that can actually beep.
type Sink interface {
	Emit(tone Tone)
}

type logSink struct {
	logger providers.Logger
}

func (s *logSink) Emit(tone Tone) {
	s.logger.Infof(providers.TypeAlert, "alert tone: severity=%s frequency=%dHz beeps=%d", tone.Severity, tone.FrequencyHz, tone.Beeps)
}

// NewAlertSinks assembles the configured sinks. The log sink is always
// present; the MQTT sink is added when configured and reachable. A
// broker failure downgrades to log-only instead of failing startup.
func NewAlertSinks(conf *structures.Config, logger providers.Logger) []Sink {
	sinks := []Sink{&logSink{logger: logger}}

	if conf.Alerts.MQTT.Enabled {
		mqttSink, err := NewMQTTSink(conf.Alerts.MQTT, logger)
		if err != nil {
			logger.Warnf(providers.TypeAlert, "mqtt sink unavailable, alerts are log-only: %s", err)
		} else {
			sinks = append(sinks, mqttSink)
		}
	}

	return sinks
}
