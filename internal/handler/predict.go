package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"bedbug-detector/internal/config"
	"bedbug-detector/internal/dto"
	"bedbug-detector/internal/logger"
	"bedbug-detector/internal/middleware"
	"bedbug-detector/internal/model"
	"bedbug-detector/internal/service"
	"bedbug-detector/internal/service/ai"
)

const (
	// DefaultHistoryLimit is used when ?limit is missing or invalid.
	DefaultHistoryLimit = 100
	// MaxHistoryLimit caps ?limit.
	MaxHistoryLimit = 1000
	// maxSaveBodyBytes bounds the JSON body of POST /save.
	maxSaveBodyBytes = 64 << 10
)

// RootHandler describes the service and its endpoints.
func RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, r, http.StatusNotFound, "Not found")
			return
		}
		writeJSON(w, http.StatusOK, dto.ServiceInfo{
			Name:    dto.ServiceName,
			Version: dto.APIVersion,
			Status:  "running",
			Endpoints: map[string]string{
				"health":  "/health",
				"predict": "/predict",
				"save":    "/save",
				"history": "/history",
				"stats":   "/stats",
				"live":    "/api/live",
			},
		})
	}
}

// HealthHandler reports whether the model is loaded.
func HealthHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, dto.HealthResponse{
			Status:      "healthy",
			ModelLoaded: manager.ModelLoaded(),
			APIVersion:  dto.APIVersion,
		})
	}
}

// PredictHandler handles POST /predict with a multipart "image" field.
// With ?save=true the verdict is stored under the uploaded file name.
func PredictHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if !manager.ModelLoaded() {
			writeError(w, r, http.StatusServiceUnavailable, "Model not loaded")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())
		file, header, err := r.FormFile("image")
		if err != nil {
			if predictionStatus(err) == http.StatusRequestEntityTooLarge {
				writeError(w, r, http.StatusRequestEntityTooLarge, "Upload too large")
				return
			}
			writeError(w, r, http.StatusBadRequest, "Multipart field 'image' is required")
			return
		}
		defer file.Close()

		switch header.Header.Get("Content-Type") {
		case "image/jpeg", "image/png":
		default:
			writeError(w, r, http.StatusBadRequest, service.ErrUnsupportedImage.Error())
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Failed to read upload")
			return
		}

		save, _ := strconv.ParseBool(r.URL.Query().Get("save"))

		out, err := manager.Predict(r.Context(), data, header.Filename, save, service.SourceAPI)
		if err != nil {
			status := predictionStatus(err)
			if status == http.StatusInternalServerError {
				logger.Error("[%s] Prediction failed for %s: %v", middleware.GetRequestID(r.Context()), header.Filename, err)
				writeError(w, r, status, "Prediction failed: "+err.Error())
				return
			}
			writeError(w, r, status, err.Error())
			return
		}

		logger.Info("[%s] %s -> %s (p=%.4f, views=%d)", middleware.GetRequestID(r.Context()),
			header.Filename, out.Result.Label, out.Result.Probability, out.Result.Views)

		resp := dto.NewPredictionResponse(out.Result)
		if out.Record != nil {
			resp.ID = &out.Record.ID
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SaveHandler handles POST /save with a JSON prediction record.
func SaveHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSaveBodyBytes))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Failed to read request body")
			return
		}

		req, err := dto.DecodeSaveRequest(body)
		if err != nil {
			if errors.Is(err, dto.ErrInvalidRequest) {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("Error validating save request: %v", err)
			writeError(w, r, http.StatusInternalServerError, "Failed to save prediction")
			return
		}

		id, err := manager.Save(r.Context(), req.ToPrediction(), service.SourceAPI)
		if err != nil {
			if errors.Is(err, model.ErrInvalidLabel) {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("[%s] Error saving prediction: %v", middleware.GetRequestID(r.Context()), err)
			writeError(w, r, http.StatusInternalServerError, "Failed to save prediction: "+err.Error())
			return
		}

		writeJSON(w, http.StatusOK, dto.SaveResponse{Status: "saved", ID: id})
	}
}

// HistoryHandler returns stored predictions newest first.
func HistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		q := r.URL.Query()
		limit := atoiDefault(q.Get("limit"), DefaultHistoryLimit)
		if limit > MaxHistoryLimit {
			limit = MaxHistoryLimit
		}

		filter := &model.HistoryFilter{
			Limit:  limit,
			Offset: atoiDefault(q.Get("offset"), 0),
		}
		if raw := q.Get("label"); raw != "" {
			label, err := model.ParseLabel(raw)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			filter.Label = label
		}

		records, err := manager.History(r.Context(), filter)
		if err != nil {
			logger.Error("Error querying history: %v", err)
			writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, dto.NewHistory(records))
	}
}

// StatsHandler returns aggregate counts per label.
func StatsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		stats, err := manager.Stats(r.Context())
		if err != nil {
			logger.Error("Error computing stats: %v", err)
			writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// predictionStatus maps a prediction error to an HTTP status.
func predictionStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ai.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnsupportedImage), errors.Is(err, ai.ErrEmptyImage):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(r.Context())})
}
