package dto

import (
	"encoding/json"
	"time"

	"bedbug-detector/internal/model"
)

// APIVersion is reported by the root and health endpoints.
const APIVersion = "1.0.0"

// ServiceName is the human readable name of the API.
const ServiceName = "Bedbug Detector API"

// PredictionResponse is the body returned by POST /predict.
type PredictionResponse struct {
	Label       model.Label `json:"label"`
	Probability float64     `json:"probability"`
	Confidence  float64     `json:"confidence"`
	Views       int         `json:"views"`
	ID          *int64      `json:"id,omitempty"` // Set when the prediction was saved
}

// NewPredictionResponse converts a decision result into a response body.
func NewPredictionResponse(res model.Result) PredictionResponse {
	return PredictionResponse{
		Label:       res.Label,
		Probability: res.Probability,
		Confidence:  res.Confidence,
		Views:       res.Views,
	}
}

// SavePredictionRequest is the body accepted by POST /save.
type SavePredictionRequest struct {
	Label       model.Label `json:"label"`
	Confidence  float64     `json:"confidence"`
	Probability *float64    `json:"probability,omitempty"`
	ImageName   string      `json:"image_name"`
}

// ToPrediction builds an unsaved record from the request.
func (r SavePredictionRequest) ToPrediction() *model.Prediction {
	return &model.Prediction{
		Label:       r.Label,
		Confidence:  r.Confidence,
		Probability: r.Probability,
		ImageName:   r.ImageName,
	}
}

// SaveResponse is returned after a record was stored.
type SaveResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	APIVersion  string `json:"api_version"`
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HistoryItem is one entry of GET /history and of the live feed.
type HistoryItem struct {
	model.Prediction
}

// MarshalJSON formats created_at as an ISO-8601 timestamp in UTC.
func (h HistoryItem) MarshalJSON() ([]byte, error) {
	type Alias model.Prediction
	return json.Marshal(&struct {
		CreatedAt string `json:"created_at"`
		Alias
	}{
		CreatedAt: h.CreatedAt.UTC().Format(time.RFC3339Nano),
		Alias:     (Alias)(h.Prediction),
	})
}

// NewHistory wraps stored records for the response.
func NewHistory(records []model.Prediction) []HistoryItem {
	items := make([]HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, HistoryItem{Prediction: r})
	}
	return items
}

// LiveEvent is broadcast to dashboard viewers whenever a prediction is saved.
type LiveEvent struct {
	Type       string      `json:"type"`
	Source     string      `json:"source"` // api, cli or telegram
	Prediction HistoryItem `json:"prediction"`
}
