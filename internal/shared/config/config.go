package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	LLMProvider     string
	LLMModel        string
	ClassifierModel string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	LLMTimeout      time.Duration
	MaxImageEdge    int
	MaxUploadBytes  int64
}

// fileConfig mirrors Config for the optional YAML file named by CONFIG_FILE.
type fileConfig struct {
	Port            string   `yaml:"port"`
	CORSAllowOrigin []string `yaml:"corsAllowOrigins"`
	Env             string   `yaml:"env"`
	ObjectStore     string   `yaml:"objectStore"`
	LocalStoreDir   string   `yaml:"localStoreDir"`
	AWSRegion       string   `yaml:"awsRegion"`
	S3Bucket        string   `yaml:"s3Bucket"`
	S3Prefix        string   `yaml:"s3Prefix"`
	LLM             struct {
		Provider        string `yaml:"provider"`
		Model           string `yaml:"model"`
		ClassifierModel string `yaml:"classifierModel"`
		TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	} `yaml:"llm"`
	MaxImageEdge int `yaml:"maxImageEdge"`
	MaxUploadMB  int `yaml:"maxUploadMB"`
}

// Load reads configuration from environment variables with sensible defaults.
// Values from an optional YAML file (CONFIG_FILE) act as defaults that the
// environment overrides.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	var fc fileConfig
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			log.Printf("config: ignoring %s: %v", path, err)
		} else {
			fc = loaded
		}
	}

	model := getEnv("LLM_MODEL", fc.LLM.Model)
	timeoutSeconds := getEnvInt("LLM_TIMEOUT_SECONDS", orInt(fc.LLM.TimeoutSeconds, 120))
	uploadMB := getEnvInt("MAX_UPLOAD_MB", orInt(fc.MaxUploadMB, 10))

	cors := splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", ""))
	if len(cors) == 0 {
		cors = fc.CORSAllowOrigin
	}
	if len(cors) == 0 {
		cors = []string{"http://localhost:5173"}
	}

	return Config{
		Port:            getEnv("PORT", or(fc.Port, "8080")),
		CORSAllowOrigin: cors,
		Env:             normalizeEnv(getEnv("ENV", or(fc.Env, "dev"))),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", or(fc.ObjectStore, "local"))),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", or(fc.LocalStoreDir, "./uploaded_images")),
		AWSRegion:       getEnv("AWS_REGION", fc.AWSRegion),
		S3Bucket:        getEnv("S3_BUCKET", fc.S3Bucket),
		S3Prefix:        getEnv("S3_PREFIX", fc.S3Prefix),
		LLMProvider:     normalizeProvider(getEnv("LLM_PROVIDER", or(fc.LLM.Provider, "openai"))),
		LLMModel:        model,
		ClassifierModel: getEnv("CLASSIFIER_MODEL", or(fc.LLM.ClassifierModel, model)),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		LLMTimeout:      time.Duration(timeoutSeconds) * time.Second,
		MaxImageEdge:    getEnvInt("MAX_IMAGE_EDGE", orInt(fc.MaxImageEdge, 2048)),
		MaxUploadBytes:  int64(uploadMB) << 20,
	}
}

// loadFile parses a YAML configuration file.
func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func or(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func orInt(val, def int) int {
	if val > 0 {
		return val
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "memory", "mem":
		return "memory"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	case "none", "":
		return "none"
	default:
		return "openai"
	}
}
