//go:build !gocv
// +build !gocv

package backend

import (
	"context"
	"errors"
)

var errGoCVDisabled = errors.New("gocv build tag is not enabled")

// GoCVBackend is unavailable without the gocv build tag.
type GoCVBackend struct{}

// NewGoCVBackend returns an error when built without OpenCV.
func NewGoCVBackend(modelPath string, inputShape []int64) (*GoCVBackend, error) {
	_ = modelPath
	_ = inputShape
	return nil, errGoCVDisabled
}

func (b *GoCVBackend) Run(ctx context.Context, input []float32) (float32, error) {
	_ = ctx
	_ = input
	return 0, errGoCVDisabled
}

func (b *GoCVBackend) Close() error {
	return nil
}
