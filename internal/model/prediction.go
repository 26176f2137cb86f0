package model

import (
	"errors"
	"fmt"
	"time"
)

// Label is the verdict of the classifier.
type Label string

const (
	LabelCimex     Label = "Cimex"
	LabelNonCimex  Label = "Non-Cimex"
	LabelUncertain Label = "uncertain"
)

// Labels lists every valid label.
var Labels = []Label{LabelCimex, LabelNonCimex, LabelUncertain}

// ErrInvalidLabel is returned when a string does not name a known label.
var ErrInvalidLabel = errors.New("invalid label")

// ParseLabel converts s into a Label.
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLabel, s)
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	_, err := ParseLabel(string(l))
	return err == nil
}

func (l Label) String() string {
	return string(l)
}

// Result is the outcome of one smart prediction.
type Result struct {
	Label       Label   `json:"label"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	Views       int     `json:"views"` // Number of samples averaged (1 or 4)
}

// Prediction represents a stored prediction record.
type Prediction struct {
	ID          int64     `json:"id"`
	Label       Label     `json:"label"`
	Confidence  float64   `json:"confidence"`
	Probability *float64  `json:"probability"`
	ImageName   string    `json:"image_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// PredictionFromResult builds an unsaved record for an image.
func PredictionFromResult(res Result, imageName string) *Prediction {
	p := res.Probability
	return &Prediction{
		Label:       res.Label,
		Confidence:  res.Confidence,
		Probability: &p,
		ImageName:   imageName,
	}
}

// HistoryFilter contains filtering options for querying predictions.
type HistoryFilter struct {
	Label  Label
	Limit  int
	Offset int
}

// Stats contains aggregate statistics about stored predictions.
type Stats struct {
	Total             int     `json:"total_predictions"`
	Cimex             int     `json:"cimex_detected"`
	NonCimex          int     `json:"non_cimex"`
	Uncertain         int     `json:"uncertain"`
	AverageConfidence float64 `json:"average_confidence"`
}
