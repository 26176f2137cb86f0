package ai

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// DefaultImageSize is the square input resolution of the Cimex model.
const DefaultImageSize = 300

// Layout is the memory order of the input tensor.
type Layout string

const (
	LayoutNHWC Layout = "NHWC" // Keras / TensorFlow exports
	LayoutNCHW Layout = "NCHW" // PyTorch and OpenCV blobs
)

// Normalization maps a 0-255 channel value v to v*Scale + Offset.
type Normalization struct {
	Name   string
	Scale  float32
	Offset float32
}

var (
	// NormalizationEfficientNet feeds raw pixel values; EfficientNet rescales internally.
	NormalizationEfficientNet = Normalization{Name: "efficientnet", Scale: 1, Offset: 0}
	// NormalizationUnit scales pixels to [0,1].
	NormalizationUnit = Normalization{Name: "unit", Scale: 1.0 / 255.0, Offset: 0}
	// NormalizationTF scales pixels to [-1,1].
	NormalizationTF = Normalization{Name: "tf", Scale: 1.0 / 127.5, Offset: -1}
)

// ParseNormalization looks up a normalization by name.
func ParseNormalization(name string) (Normalization, error) {
	for _, n := range []Normalization{NormalizationEfficientNet, NormalizationUnit, NormalizationTF} {
		if n.Name == name {
			return n, nil
		}
	}
	return Normalization{}, fmt.Errorf("unknown input normalization %q", name)
}

// Preprocessor turns an image into the model's input tensor.
type Preprocessor struct {
	Size          int
	Layout        Layout
	Normalization Normalization
}

// NewPreprocessor validates and builds a Preprocessor.
func NewPreprocessor(size int, layout, normalization string) (*Preprocessor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}
	l := Layout(layout)
	if l != LayoutNHWC && l != LayoutNCHW {
		return nil, fmt.Errorf("unknown input layout %q", layout)
	}
	norm, err := ParseNormalization(normalization)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{Size: size, Layout: l, Normalization: norm}, nil
}

// DefaultPreprocessor returns the 300×300 NHWC EfficientNet preprocessor.
func DefaultPreprocessor() *Preprocessor {
	return &Preprocessor{Size: DefaultImageSize, Layout: LayoutNHWC, Normalization: NormalizationEfficientNet}
}

// TensorLen is the number of float32 values in one input tensor.
func (p *Preprocessor) TensorLen() int {
	return 3 * p.Size * p.Size
}

// Shape returns the batch-of-one input shape for the layout.
func (p *Preprocessor) Shape() []int64 {
	s := int64(p.Size)
	if p.Layout == LayoutNCHW {
		return []int64{1, 3, s, s}
	}
	return []int64{1, s, s, 3}
}

// Tensor resizes img and returns the normalized RGB input tensor.
// Alpha is dropped without compositing.
func (p *Preprocessor) Tensor(img image.Image) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	resized := resize.Resize(uint(p.Size), uint(p.Size), img, resize.Bicubic)
	bounds := resized.Bounds()
	if bounds.Dx() != p.Size || bounds.Dy() != p.Size {
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), p.Size, p.Size)
	}

	plane := p.Size * p.Size
	out := make([]float32, 3*plane)
	scale, offset := p.Normalization.Scale, p.Normalization.Offset

	for y := 0; y < p.Size; y++ {
		for x := 0; x < p.Size; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			r := float32(c.R)*scale + offset
			g := float32(c.G)*scale + offset
			b := float32(c.B)*scale + offset

			idx := y*p.Size + x
			if p.Layout == LayoutNCHW {
				out[idx] = r
				out[plane+idx] = g
				out[2*plane+idx] = b
			} else {
				out[3*idx] = r
				out[3*idx+1] = g
				out[3*idx+2] = b
			}
		}
	}

	return out, nil
}
