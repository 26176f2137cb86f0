package ai

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"bedbug-detector/internal/model"
)

const (
	// DefaultThreshold is the decision threshold T; 1-T is the Cimex bound.
	DefaultThreshold = 0.7
	// DefaultUncertainLow is the lower bound of the ambiguous band.
	DefaultUncertainLow = 0.35
	// DefaultUncertainHigh is the upper bound of the ambiguous band.
	DefaultUncertainHigh = 0.65

	// escalationViews is the number of rotated views added for an ambiguous image.
	escalationViews = 3
)

// Thresholds configures the decision procedure.
type Thresholds struct {
	Threshold     float64
	UncertainLow  float64
	UncertainHigh float64
}

// DefaultThresholds returns 0.7 / 0.35 / 0.65.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Threshold:     DefaultThreshold,
		UncertainLow:  DefaultUncertainLow,
		UncertainHigh: DefaultUncertainHigh,
	}
}

// Validate checks 0.5 < Threshold <= 1 and 0 <= UncertainLow <= UncertainHigh <= 1.
func (t Thresholds) Validate() error {
	if !(t.Threshold > 0.5 && t.Threshold <= 1) {
		return fmt.Errorf("%w: threshold %v must be in (0.5, 1]", ErrInvalidThresholds, t.Threshold)
	}
	if t.UncertainLow < 0 || t.UncertainHigh > 1 || t.UncertainLow > t.UncertainHigh {
		return fmt.Errorf("%w: ambiguous band [%v, %v]", ErrInvalidThresholds, t.UncertainLow, t.UncertainHigh)
	}
	return nil
}

// Ambiguous reports whether p lies in the closed band [UncertainLow, UncertainHigh].
func (t Thresholds) Ambiguous(p float64) bool {
	return p >= t.UncertainLow && p <= t.UncertainHigh
}

// Decide maps an averaged probability to a labelled result.
func (t Thresholds) Decide(avg float64, views int) model.Result {
	res := model.Result{Probability: avg, Views: views}
	switch {
	case avg >= t.Threshold:
		res.Label = model.LabelNonCimex
		res.Confidence = avg
	case avg <= 1-t.Threshold:
		res.Label = model.LabelCimex
		res.Confidence = 1 - avg
	default:
		res.Label = model.LabelUncertain
		res.Confidence = math.Abs(avg-0.5) * 2
	}
	return res
}

// Predictor runs the adaptive multi-view decision procedure.
type Predictor struct {
	classifier ImageClassifier
	thresholds Thresholds
	parallel   bool
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithThresholds overrides the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(p *Predictor) {
		p.thresholds = t
	}
}

// WithParallelEscalation classifies the three rotated views concurrently.
func WithParallelEscalation(enabled bool) Option {
	return func(p *Predictor) {
		p.parallel = enabled
	}
}

// NewPredictor creates a Predictor around classifier.
func NewPredictor(classifier ImageClassifier, opts ...Option) (*Predictor, error) {
	p := &Predictor{
		classifier: classifier,
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.thresholds.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Thresholds returns the thresholds in use.
func (p *Predictor) Thresholds() Thresholds {
	return p.thresholds
}

// Available reports whether the underlying classifier has a model loaded.
func (p *Predictor) Available() bool {
	return p.classifier != nil && p.classifier.Available()
}

// SmartPredict classifies img once and, if the probability is ambiguous,
// three more times rotated by 90°, 180° and 270°. The mean of the samples
// decides the label. Any failed view fails the whole prediction.
func (p *Predictor) SmartPredict(ctx context.Context, img image.Image) (model.Result, error) {
	if !p.Available() {
		return model.Result{}, ErrModelUnavailable
	}

	first, err := p.classifier.Classify(ctx, img)
	if err != nil {
		return model.Result{}, classificationError(0, err)
	}

	samples := []float64{first}
	if p.thresholds.Ambiguous(first) {
		rotated, err := p.escalate(ctx, img)
		if err != nil {
			return model.Result{}, err
		}
		samples = append(samples, rotated...)
	}

	return p.thresholds.Decide(mean(samples), len(samples)), nil
}

// escalate classifies the rotated views and returns their probabilities in rotation order.
func (p *Predictor) escalate(ctx context.Context, img image.Image) ([]float64, error) {
	views := RotatedViews(img)
	samples := make([]float64, len(views))

	if !p.parallel {
		for i, view := range views {
			if err := ctx.Err(); err != nil {
				return nil, classificationError(i+1, err)
			}
			prob, err := p.classifier.Classify(ctx, view)
			if err != nil {
				return nil, classificationError(i+1, err)
			}
			samples[i] = prob
		}
		return samples, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, view := range views {
		i, view := i, view
		g.Go(func() error {
			prob, err := p.classifier.Classify(gctx, view)
			if err != nil {
				return classificationError(i+1, err)
			}
			samples[i] = prob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

// RotatedViews returns img rotated 90°, 180° and 270° counter-clockwise.
// Each rotation swaps width and height, so nothing is cropped.
func RotatedViews(img image.Image) []image.Image {
	views := make([]image.Image, 0, escalationViews)
	current := img
	for i := 0; i < escalationViews; i++ {
		current = imaging.Rotate90(current)
		views = append(views, current)
	}
	return views
}

// mean sums in slice order so results do not depend on evaluation order.
func mean(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
