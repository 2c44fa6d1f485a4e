package incidents

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"smd/internal/models"
	"smd/internal/providers"
	"smd/internal/storage"
	"smd/internal/structures"
)

const defaultTimeout = 10 * time.Second

// Composer bundles a snapshot and session metadata into an incident
// submission. Persistence belongs to the external incident API; the
// composer only uploads the snapshot (when object storage is available)
// and submits the report.
type Composer struct {
	baseURL string
	http    *http.Client
	store   storage.SnapshotStore
	logger  providers.Logger

	mu       sync.Mutex
	proposed []models.Incident
}

func NewComposer(conf *structures.Config, store storage.SnapshotStore, logger providers.Logger) *Composer {
	timeout := conf.Incidents.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Composer{
		baseURL: strings.TrimRight(conf.Incidents.APIBaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
		logger:  logger,
	}
}

// Compose submits an incident for the session, embedding the screenshot
// either as a server-hosted URL or inline base64 when no object storage
// is configured. The returned incident carries the server-assigned id.
func (c *Composer) Compose(ctx context.Context, session models.FeedSession, shot models.Screenshot, title, description string, severity models.Severity) (models.Incident, error) {
	incident := models.Incident{
		Title:        title,
		Description:  description,
		Severity:     severity,
		CameraID:     session.CameraID,
		IncidentTime: time.Now(),
	}

	if len(shot.Payload) > 0 {
		key := fmt.Sprintf("incidents/%s/%s.jpg", session.CameraID, shot.ID)
		url, err := c.store.SaveSnapshot(ctx, key, shot.Payload, "image/jpeg")
		if err != nil {
			c.logger.Warnf(providers.TypeApp, "Snapshot upload failed, embedding inline: %s", err)
		}
		if url != "" {
			incident.ScreenshotURL = url
		} else {
			incident.Screenshot = base64.StdEncoding.EncodeToString(shot.Payload)
		}
	}

	body, err := json.Marshal(&incident)
	if err != nil {
		return models.Incident{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/incidents", bytes.NewReader(body))
	if err != nil {
		return models.Incident{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Incident{}, fmt.Errorf("submit incident: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return models.Incident{}, fmt.Errorf("submit incident: unexpected status %d", resp.StatusCode)
	}

	var echoed models.Incident
	if err := json.NewDecoder(resp.Body).Decode(&echoed); err != nil {
		return models.Incident{}, fmt.Errorf("decode incident response: %w", err)
	}
	return echoed, nil
}

// List fetches all persisted incidents from the external collaborator.
func (c *Composer) List(ctx context.Context) ([]models.Incident, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/incidents", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list incidents: unexpected status %d", resp.StatusCode)
	}

	var incidents []models.Incident
	if err := json.NewDecoder(resp.Body).Decode(&incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// Delete removes a persisted incident. Incidents are never mutated
// after submission, only deleted.
func (c *Composer) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/incidents/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete incident %s: %w", id, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete incident %s: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}

// AcceptBackendIncident receives an incident proposed by the inference
// backend over a session's channel, forwarded unchanged.
func (c *Composer) AcceptBackendIncident(cameraID string, payload []byte) {
	var incident models.Incident
	if err := json.Unmarshal(payload, &incident); err != nil {
		c.logger.Warnf(providers.TypeStream, "camera %s: undecodable backend incident dropped: %s", cameraID, err)
		return
	}
	if incident.CameraID == "" {
		incident.CameraID = cameraID
	}
	if incident.IncidentTime.IsZero() {
		incident.IncidentTime = time.Now()
	}

	c.mu.Lock()
	c.proposed = append(c.proposed, incident)
	c.mu.Unlock()

	c.logger.Infof(providers.TypeStream, "camera %s: backend proposed incident %q (%s)", cameraID, incident.Title, incident.Severity)
}

// Proposed returns backend-proposed incidents awaiting review.
func (c *Composer) Proposed() []models.Incident {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Incident, len(c.proposed))
	copy(out, c.proposed)
	return out
}
