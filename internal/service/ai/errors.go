package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when no model is loaded. It is never retried.
	ErrModelUnavailable = errors.New("model not loaded")

	// ErrInvalidOutput is returned when the model produces something that is not a probability.
	ErrInvalidOutput = errors.New("model output is not a probability")

	// ErrEmptyImage is returned for nil or zero-sized images.
	ErrEmptyImage = errors.New("image is empty")

	// ErrInvalidThresholds is returned for inconsistent decision thresholds.
	ErrInvalidThresholds = errors.New("invalid thresholds")
)

// ClassificationError reports a failed inference on one view of the image.
// View 0 is the original image, views 1-3 are the 90°, 180° and 270° rotations.
type ClassificationError struct {
	View int
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification of view %d failed: %v", e.View, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

func classificationError(view int, err error) error {
	if errors.Is(err, ErrModelUnavailable) {
		return err
	}
	return &ClassificationError{View: view, Err: err}
}
