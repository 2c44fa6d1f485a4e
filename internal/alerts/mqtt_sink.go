package alerts

import (
	"fmt"
	"smd/internal/providers"
	"smd/internal/structures"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"
)

// MQTTSink publishes emitted tones to the dashboard's alert topic so
// connected clients can render the audio.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	logger providers.Logger
}

func NewMQTTSink(conf structures.MQTTConfig, logger providers.Logger) (*MQTTSink, error) {
	host := conf.Host
	if host == "" {
		host = "localhost"
	}
	port := conf.Port
	if port == 0 {
		port = 1883
	}
	clientID := conf.ClientID
	if clientID == "" {
		clientID = "smd-alerts"
	}
	baseTopic := conf.BaseTopic
	if baseTopic == "" {
		baseTopic = "safety-monitor"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", host, port))
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	return &MQTTSink{
		client: client,
		topic:  baseTopic + "/alerts",
		logger: logger,
	}, nil
}

func (s *MQTTSink) Emit(tone Tone) {
	payload, err := json.Marshal(tone)
	if err != nil {
		s.logger.Errorf(providers.TypeAlert, "mqtt sink: encode tone: %s", err)
		return
	}
	token := s.client.Publish(s.topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Warnf(providers.TypeAlert, "mqtt sink: publish failed: %s", err)
	}
}

func (s *MQTTSink) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
