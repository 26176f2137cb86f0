// Package backend loads the inference runtimes behind ai.Backend.
package backend

import (
	"fmt"
	"os"

	"bedbug-detector/internal/config"
	"bedbug-detector/internal/logger"
	"bedbug-detector/internal/service/ai"
)

const (
	ONNX = "onnx"
	GoCV = "gocv"
)

// Open loads the backend selected by cfg.ModelBackend.
func Open(cfg *config.Config, pre *ai.Preprocessor) (ai.Backend, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}

	switch cfg.ModelBackend {
	case ONNX:
		b, err := NewONNXBackend(ONNXOptions{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.OnnxRuntimeLib,
			InputName:   cfg.ModelInputName,
			OutputName:  cfg.ModelOutputName,
			InputShape:  pre.Shape(),
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case GoCV:
		b, err := NewGoCVBackend(cfg.ModelPath, pre.Shape())
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.ModelBackend)
	}
}

// LoadClassifier builds the classifier from cfg. A model that cannot be
// loaded is logged and yields an unavailable classifier, so the service still
// starts and reports model_loaded=false.
func LoadClassifier(cfg *config.Config, log *logger.Logger) (*ai.Classifier, error) {
	pre, err := ai.NewPreprocessor(cfg.ImageSize, cfg.ModelInputLayout, cfg.InputNormalization)
	if err != nil {
		return nil, err
	}

	b, err := Open(cfg, pre)
	if err != nil {
		log.Warning("Could not load model from %s: %v", cfg.ModelPath, err)
		return ai.NewClassifier(nil, pre), nil
	}

	log.Info("Model loaded from %s (%s backend, %s %v, %s normalization)",
		cfg.ModelPath, cfg.ModelBackend, pre.Layout, pre.Shape(), pre.Normalization.Name)
	return ai.NewClassifier(b, pre), nil
}
