package stream

import (
	"context"
	"encoding/base64"
	"fmt"
	"smd/internal/models"
	"smd/internal/providers"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type EventKind int

const (
	EventStatus EventKind = iota
	EventFrame
	EventError
	EventIncident
)

// Event is one typed message delivered by a camera's channel, in arrival
// order. For EventFrame, Frame holds the decoded JPEG payload and
// Detection is nil when the message carried no (or an unusable)
// detection payload.
type Event struct {
	Kind      EventKind
	Message   string
	Frame     []byte
	Detection *models.DetectionResult
	Incident  json.RawMessage
}

// wire message shape of the inference backend stream endpoint.
type inboundMessage struct {
	Type     string                  `json:"type"`
	Frame    string                  `json:"frame"`
	Results  *models.DetectionResult `json:"results"`
	Message  string                  `json:"message"`
	Incident json.RawMessage         `json:"incident"`
}

const eventBufferSize = 64

// Channel wraps one persistent full-duplex connection to one camera's
// backend endpoint. The stream is one-directional: no outbound messages
// are sent during normal operation.
type Channel struct {
	cameraID  string
	conn      *websocket.Conn
	events    chan Event
	logger    providers.Logger
	closeOnce sync.Once
	closed    chan struct{}
}

// Open dials the backend stream endpoint for the given camera and
// starts the read loop. The returned channel delivers events until the
// connection drops or Close is called; the events channel is closed
// afterwards.
func Open(ctx context.Context, backendURL, cameraID string, logger providers.Logger) (*Channel, error) {
	endpoint := fmt.Sprintf("%s/ws/monitor/%s", strings.TrimRight(backendURL, "/"), cameraID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("open channel for camera %s: %w", cameraID, err)
	}

	c := &Channel{
		cameraID: cameraID,
		conn:     conn,
		events:   make(chan Event, eventBufferSize),
		logger:   logger,
		closed:   make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

// Events returns the channel's event stream. It is closed when the
// connection ends for any reason.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close tears the connection down. It is idempotent and safe to call on
// an already-closed or never-opened channel.
func (c *Channel) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Channel) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warnf(providers.TypeStream, "camera %s: connection dropped: %s", c.cameraID, err)
				c.deliver(Event{Kind: EventError, Message: "Connection lost"})
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnf(providers.TypeStream, "camera %s: malformed message dropped: %s", c.cameraID, err)
			continue
		}

		switch msg.Type {
		case "frame":
			c.deliver(c.frameEvent(msg))
		case "status":
			c.deliver(Event{Kind: EventStatus, Message: msg.Message})
		case "error":
			c.deliver(Event{Kind: EventError, Message: msg.Message})
		case "incident":
			c.deliver(Event{Kind: EventIncident, Incident: msg.Incident})
		default:
			c.logger.Warnf(providers.TypeStream, "camera %s: unknown message type %q dropped", c.cameraID, msg.Type)
		}
	}
}

// frameEvent decodes the raster payload. A frame whose payload cannot
// be decoded still produces an event so the session's liveness state is
// updated, but carries neither frame bytes nor a detection result.
func (c *Channel) frameEvent(msg inboundMessage) Event {
	payload, err := base64.StdEncoding.DecodeString(msg.Frame)
	if err != nil {
		c.logger.Warnf(providers.TypeStream, "camera %s: undecodable frame payload dropped: %s", c.cameraID, err)
		return Event{Kind: EventFrame}
	}
	return Event{Kind: EventFrame, Frame: payload, Detection: msg.Results}
}

func (c *Channel) deliver(ev Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}
