package internal

import (
	"net/http"
	"smd/internal/controllers"
	"smd/internal/providers"
	"smd/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/sessions", http.HandlerFunc(apiController.GetSessions))
	routers.Post("/sessions/start", http.HandlerFunc(apiController.StartSession))
	routers.Post("/sessions/stop", http.HandlerFunc(apiController.StopSession))

	routers.Get("/stats", http.HandlerFunc(apiController.GetStats))
	routers.Get("/stats/global", http.HandlerFunc(apiController.GetGlobalStats))
	routers.Get("/history", http.HandlerFunc(apiController.GetHistory))

	routers.Post("/screenshots/capture", http.HandlerFunc(apiController.CaptureScreenshot))
	routers.Get("/screenshots", http.HandlerFunc(apiController.GetScreenshots))
	routers.Get("/screenshots/export", http.HandlerFunc(apiController.ExportScreenshot))

	routers.Post("/recordings/start", http.HandlerFunc(apiController.StartRecording))
	routers.Post("/recordings/stop", http.HandlerFunc(apiController.StopRecording))
	routers.Get("/recordings", http.HandlerFunc(apiController.GetRecordingState))

	routers.Post("/incidents/create", http.HandlerFunc(apiController.CreateIncident))
	routers.Get("/incidents", http.HandlerFunc(apiController.GetIncidents))
	routers.Get("/incidents/proposed", http.HandlerFunc(apiController.GetProposedIncidents))
	routers.Delete("/incidents/delete", http.HandlerFunc(apiController.DeleteIncident))

	routers.Get("/alerts", http.HandlerFunc(apiController.GetAlertState))
	routers.Post("/alerts/mute", http.HandlerFunc(apiController.MuteAlerts))
	routers.Post("/alerts/unmute", http.HandlerFunc(apiController.UnmuteAlerts))
	return routers
}
