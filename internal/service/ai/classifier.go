package ai

import (
	"context"
	"fmt"
	"image"
	"math"
)

// Backend runs one forward pass over a preprocessed input tensor and returns
// the model's sigmoid output.
type Backend interface {
	Run(ctx context.Context, input []float32) (float32, error)
	Close() error
}

// ImageClassifier is the classifier port used by the Predictor.
type ImageClassifier interface {
	// Available reports whether a model is loaded.
	Available() bool
	// Classify returns the probability for a single view of img.
	Classify(ctx context.Context, img image.Image) (float64, error)
}

// Classifier performs single-view classification: resize, normalize and one
// forward pass. A Classifier without a backend is valid but unavailable.
type Classifier struct {
	backend Backend
	pre     *Preprocessor
}

// NewClassifier creates a Classifier. backend may be nil when the model failed to load.
func NewClassifier(backend Backend, pre *Preprocessor) *Classifier {
	if pre == nil {
		pre = DefaultPreprocessor()
	}
	return &Classifier{backend: backend, pre: pre}
}

func (c *Classifier) Available() bool {
	return c != nil && c.backend != nil
}

// Classify implements ImageClassifier.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (float64, error) {
	if !c.Available() {
		return 0, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	input, err := c.pre.Tensor(img)
	if err != nil {
		return 0, fmt.Errorf("preprocess: %w", err)
	}

	out, err := c.backend.Run(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	p := float64(out)
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidOutput, p)
	}
	return p, nil
}

// Close releases the backend.
func (c *Classifier) Close() error {
	if !c.Available() {
		return nil
	}
	return c.backend.Close()
}
