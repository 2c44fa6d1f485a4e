package controllers

import (
	"errors"
	json "github.com/goccy/go-json"
	"net/http"
	"smd/internal/alerts"
	"smd/internal/capture"
	"smd/internal/incidents"
	"smd/internal/models"
	"smd/internal/providers"
	"smd/internal/services"
	"smd/internal/statistic"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger    providers.Logger
	service   services.MonitorServiceInterface
	cache     providers.CacheProviderInterface
	pipeline  *capture.Pipeline
	composer  *incidents.Composer
	throttler *alerts.Throttler
	archive   *statistic.StatsArchive
}

func NewApiController(logger providers.Logger, service services.MonitorServiceInterface, cache providers.CacheProviderInterface, pipeline *capture.Pipeline, composer *incidents.Composer, throttler *alerts.Throttler, archive *statistic.StatsArchive) *ApiController {
	return &ApiController{
		logger:    logger,
		service:   service,
		cache:     cache,
		pipeline:  pipeline,
		composer:  composer,
		throttler: throttler,
		archive:   archive,
	}
}

func getCamera(r *http.Request) string {
	return r.URL.Query().Get("cam")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	gson, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// --- sessions ---

func (ac *ApiController) GetSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.service.All())
}

func (ac *ApiController) StartSession(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	err := ac.service.StartSession(r.Context(), cam)
	switch {
	case errors.Is(err, services.ErrUnknownSession):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case errors.Is(err, services.ErrAlreadyStreaming):
		http.Error(w, "Already Streaming", http.StatusConflict)
		return
	case err != nil:
		ac.logger.Errorf(providers.TypeStream, "camera %s: start failed: %s", cam, err)
		http.Error(w, "Backend Unavailable", http.StatusBadGateway)
		return
	}

	session, _ := ac.service.Get(cam)
	writeJSON(w, http.StatusOK, session)
}

func (ac *ApiController) StopSession(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	if err := ac.service.StopSession(cam); err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	session, _ := ac.service.Get(cam)
	writeJSON(w, http.StatusOK, session)
}

// --- stats ---

func (ac *ApiController) GetStats(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	session, ok := ac.service.Get(cam)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session.Stats)
}

func (ac *ApiController) GetGlobalStats(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "global", func() (any, error) {
		return ac.service.GlobalStats(), nil
	})
}

func (ac *ApiController) GetHistory(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	ac.serveFromCacheOrCompute(w, "history:"+cam, func() (any, error) {
		return ac.archive.History(cam)
	})
}

// --- screenshots ---

func (ac *ApiController) CaptureScreenshot(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	shot, err := ac.pipeline.Screenshot(cam)
	switch {
	case errors.Is(err, capture.ErrUnknownSession):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case errors.Is(err, capture.ErrNoFrameAvailable):
		http.Error(w, "No Frame Available", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, shot)
}

func (ac *ApiController) GetScreenshots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.pipeline.Gallery())
}

func (ac *ApiController) ExportScreenshot(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	shot, ok := ac.pipeline.GetScreenshot(id)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+capture.ExportFilename(shot)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(shot.Payload)
}

// --- recordings ---

func (ac *ApiController) StartRecording(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	path, err := ac.pipeline.StartRecording(cam)
	switch {
	case errors.Is(err, capture.ErrUnknownSession):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case errors.Is(err, capture.ErrNotStreaming):
		http.Error(w, "Not Streaming", http.StatusConflict)
		return
	case errors.Is(err, capture.ErrAlreadyRecording):
		http.Error(w, "Already Recording", http.StatusConflict)
		return
	case errors.Is(err, capture.ErrEncoderUnavailable):
		http.Error(w, "Encoder Unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func (ac *ApiController) StopRecording(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	path, err := ac.pipeline.StopRecording(cam)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func (ac *ApiController) GetRecordingState(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	writeJSON(w, http.StatusOK, map[string]bool{"recording": ac.pipeline.IsRecording(cam)})
}

// --- incidents ---

type createIncidentRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Severity     string `json:"severity"`
	ScreenshotID string `json:"screenshot_id"`
}

func (ac *ApiController) CreateIncident(w http.ResponseWriter, r *http.Request) {
	cam := getCamera(r)
	session, ok := ac.service.Get(cam)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var shot models.Screenshot
	if payload.ScreenshotID != "" {
		shot, ok = ac.pipeline.GetScreenshot(payload.ScreenshotID)
		if !ok {
			http.Error(w, "Screenshot Not Found", http.StatusNotFound)
			return
		}
	} else {
		var err error
		shot, err = ac.pipeline.Screenshot(cam)
		if err != nil && !errors.Is(err, capture.ErrNoFrameAvailable) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	incident, err := ac.composer.Compose(r.Context(), session, shot, payload.Title, payload.Description, models.Severity(payload.Severity))
	if err != nil {
		ac.logger.Errorf(providers.TypeApp, "Incident submission failed: %s", err)
		http.Error(w, "Incident API Unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, incident)
}

func (ac *ApiController) GetIncidents(w http.ResponseWriter, r *http.Request) {
	list, err := ac.composer.List(r.Context())
	if err != nil {
		ac.logger.Errorf(providers.TypeApp, "Incident list failed: %s", err)
		http.Error(w, "Incident API Unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (ac *ApiController) GetProposedIncidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.composer.Proposed())
}

func (ac *ApiController) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := ac.composer.Delete(r.Context(), id); err != nil {
		ac.logger.Errorf(providers.TypeApp, "Incident delete failed: %s", err)
		http.Error(w, "Incident API Unavailable", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- alerts ---

type alertStateResponse struct {
	Muted    bool   `json:"muted"`
	Cooldown string `json:"cooldown"`
}

func (ac *ApiController) GetAlertState(w http.ResponseWriter, r *http.Request) {
	prefs := ac.throttler.Snapshot()
	writeJSON(w, http.StatusOK, alertStateResponse{
		Muted:    prefs.Muted,
		Cooldown: prefs.Cooldown.String(),
	})
}

func (ac *ApiController) MuteAlerts(w http.ResponseWriter, r *http.Request) {
	ac.throttler.SetMuted(true)
	ac.GetAlertState(w, r)
}

func (ac *ApiController) UnmuteAlerts(w http.ResponseWriter, r *http.Request) {
	ac.throttler.SetMuted(false)
	ac.GetAlertState(w, r)
}
