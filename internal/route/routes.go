package route

import (
	"net/http"

	"bedbug-detector/internal/config"
	"bedbug-detector/internal/handler"
	"bedbug-detector/internal/logger"
	"bedbug-detector/internal/middleware"
	"bedbug-detector/internal/service"
)

// SetupRoutes registers the prediction API, the live feed and the log
// endpoints, and wraps the mux with request ids, CORS and the API key guard.
func SetupRoutes(manager *service.Manager, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/", handler.RootHandler())
	mux.HandleFunc("/health", handler.HealthHandler(manager))
	mux.HandleFunc("/predict", handler.PredictHandler(manager, cfg, log))
	mux.HandleFunc("/save", handler.SaveHandler(manager, log))
	mux.HandleFunc("/history", handler.HistoryHandler(manager, log))
	mux.HandleFunc("/stats", handler.StatsHandler(manager, log))
	mux.HandleFunc("/api/live", handler.LiveWebsocketHandler(manager, log))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(log, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(log, logger.ErrorFile))

	// Apply middleware
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(cfg.AllowedOrigins),
		middleware.AuthMiddleware(cfg.APIKey),
	)
}
