//go:build gocv
// +build gocv

package backend

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// GoCVBackend runs the model through the OpenCV DNN module. gocv.Net is not
// safe for concurrent use, so Run is serialized.
type GoCVBackend struct {
	mu    sync.Mutex
	net   gocv.Net
	shape []int
}

// NewGoCVBackend reads an ONNX (or other OpenCV-readable) model.
func NewGoCVBackend(modelPath string, inputShape []int64) (*GoCVBackend, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	shape := make([]int, len(inputShape))
	for i, d := range inputShape {
		shape[i] = int(d)
	}

	return &GoCVBackend{net: net, shape: shape}, nil
}

// Run wraps input in an N-dimensional float Mat and forwards it.
func (b *GoCVBackend) Run(ctx context.Context, input []float32) (float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	buf := make([]byte, 4*len(input))
	for i, v := range input {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}

	blob, err := gocv.NewMatWithSizesFromBytes(b.shape, gocv.MatTypeCV32F, buf)
	if err != nil {
		return 0, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer blob.Close()

	b.net.SetInput(blob, "")
	output := b.net.Forward("")
	defer output.Close()

	if output.Empty() || output.Total() < 1 {
		return 0, fmt.Errorf("network returned no output")
	}
	return output.GetFloatAt(0, 0), nil
}

// Close releases the network.
func (b *GoCVBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.net.Close()
}
