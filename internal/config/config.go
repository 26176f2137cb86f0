package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               int
	ModelPath          string
	ModelBackend       string // onnx or gocv
	OnnxRuntimeLib     string // path to the onnxruntime shared library, empty for the system default
	ModelInputName     string
	ModelOutputName    string
	ModelInputLayout   string // NHWC (Keras export) or NCHW
	InputNormalization string // efficientnet, unit or tf
	ImageSize          int
	Threshold          float64
	UncertainLow       float64
	UncertainHigh      float64
	ParallelEscalation bool
	DatabaseDriver     string // sqlite3 (mattn, cgo) or sqlite (modernc, pure Go)
	DatabasePath       string
	LogDirectory       string
	MaxUploadMB        int64
	AllowedOrigins     []string
	APIKey             string
	TelegramToken      string
	ProcessingWorkers  int // Batch classification workers
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnvAsInt("PORT", 8000),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "cimex_binary_RGB_V4.onnx")),
		ModelBackend:       strings.ToLower(getEnv("MODEL_BACKEND", "onnx")),
		OnnxRuntimeLib:     getEnv("ONNXRUNTIME_LIB", ""),
		ModelInputName:     getEnv("MODEL_INPUT_NAME", "input"),
		ModelOutputName:    getEnv("MODEL_OUTPUT_NAME", "output"),
		ModelInputLayout:   strings.ToUpper(getEnv("MODEL_INPUT_LAYOUT", "NHWC")),
		InputNormalization: strings.ToLower(getEnv("INPUT_NORMALIZATION", "efficientnet")),
		ImageSize:          getEnvAsInt("IMAGE_SIZE", 300),
		Threshold:          getEnvAsFloat("THRESHOLD", 0.7),
		UncertainLow:       getEnvAsFloat("UNCERTAIN_LOW", 0.35),
		UncertainHigh:      getEnvAsFloat("UNCERTAIN_HIGH", 0.65),
		ParallelEscalation: getEnvAsBool("PARALLEL_ESCALATION", false),
		DatabaseDriver:     getEnv("DB_DRIVER", "sqlite3"),
		DatabasePath:       getEnv("DATABASE_PATH", filepath.Join(".", "predictions.db")),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxUploadMB:        getEnvAsInt64("MAX_UPLOAD_MB", 10),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		APIKey:             getEnv("API_KEY", ""),
		TelegramToken:      getEnv("TELEGRAM_TOKEN", ""),
		ProcessingWorkers:  getEnvAsInt("PROCESSING_WORKERS", 3),
	}
}

// MaxUploadBytes returns the multipart upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
