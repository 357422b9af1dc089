package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/menta2k/banknote-assistant/pkg/denomination"
)

// DisabledAPIKey is the placeholder key that leaves the API unauthenticated
const DisabledAPIKey = "default-secret-key"

// Known detection backends
const (
	BackendRoboflow = "roboflow"
	BackendOllama   = "ollama"
	BackendLlamaCPP = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Detection DetectionConfig `json:"detection"`
	Speech    SpeechConfig    `json:"speech"`
	Log       LogConfig       `json:"log"`
}

// ServerConfig holds configuration for the HTTP surface
type ServerConfig struct {
	Port                int      `json:"port"`
	HostURL             string   `json:"host_url"`
	APIKey              string   `json:"api_key"`
	AllowedOrigins      []string `json:"allowed_origins"`
	MaxUploadMB         int      `json:"max_upload_mb"`
	ReadTimeoutSeconds  int      `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `json:"write_timeout_seconds"`
}

// DetectionConfig holds configuration for the detector and interpreter
type DetectionConfig struct {
	Backend             string         `json:"backend"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	Aliases             map[string]int `json:"aliases,omitempty"`
	Roboflow            RoboflowConfig `json:"roboflow"`
	Ollama              OllamaConfig   `json:"ollama"`
	LlamaCPP            LlamaCPPConfig `json:"llamacpp"`
}

// RoboflowConfig holds configuration for the hosted detection API
type RoboflowConfig struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries"`
}

// OllamaConfig holds configuration for the vision-model backend
type OllamaConfig struct {
	URL   string `json:"url"`
	Model string `json:"model"`
}

// LlamaCPPConfig holds configuration for an OpenAI-compatible model server
type LlamaCPPConfig struct {
	URL   string `json:"url"`
	Model string `json:"model"`
}

// SpeechConfig holds configuration for narration audio
type SpeechConfig struct {
	Language               string `json:"language"`
	Endpoint               string `json:"endpoint"`
	AudioDir               string `json:"audio_dir"`
	TTLMinutes             int    `json:"ttl_minutes"`
	CleanupIntervalMinutes int    `json:"cleanup_interval_minutes"`
	CacheSize              int    `json:"cache_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                8000,
			HostURL:             "http://localhost:8000",
			APIKey:              DisabledAPIKey,
			AllowedOrigins:      []string{"http://localhost:3000", "http://localhost:8080"},
			MaxUploadMB:         10,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
		},
		Detection: DetectionConfig{
			Backend:             BackendRoboflow,
			ConfidenceThreshold: 0.4,
			Roboflow: RoboflowConfig{
				TimeoutSeconds: 30,
				MaxRetries:     2,
			},
			Ollama: OllamaConfig{
				URL:   "http://localhost:11434",
				Model: "qwen2.5vl:7b",
			},
			LlamaCPP: LlamaCPPConfig{
				URL: "http://localhost:8080",
			},
		},
		Speech: SpeechConfig{
			Language:               "es",
			AudioDir:               "./static/audio",
			TTLMinutes:             60,
			CleanupIntervalMinutes: 5,
			CacheSize:              128,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the JSON file when path is
// set, then a .env file in the working directory, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("APP_API_KEY", &c.Server.APIKey)
	str("HOST_URL", &c.Server.HostURL)
	str("ROBOFLOW_API_KEY", &c.Detection.Roboflow.APIKey)
	str("ROBOFLOW_ENDPOINT", &c.Detection.Roboflow.Endpoint)
	str("DETECTION_BACKEND", &c.Detection.Backend)
	str("OLLAMA_URL", &c.Detection.Ollama.URL)
	str("OLLAMA_MODEL", &c.Detection.Ollama.Model)
	str("LLAMACPP_URL", &c.Detection.LlamaCPP.URL)
	str("LLAMACPP_MODEL", &c.Detection.LlamaCPP.Model)
	str("TTS_LANGUAGE", &c.Speech.Language)
	str("AUDIO_DIR", &c.Speech.AudioDir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := num("AUDIO_TTL_MINUTES", &c.Speech.TTLMinutes); err != nil {
		return err
	}
	if err := num("MAX_UPLOAD_MB", &c.Server.MaxUploadMB); err != nil {
		return err
	}

	if v, ok := lookup("CONFIDENCE_THRESHOLD"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("CONFIDENCE_THRESHOLD must be a number: %w", err)
		}
		c.Detection.ConfidenceThreshold = f
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	if v, ok := lookup("DEBUG"); ok {
		if debug, _ := strconv.ParseBool(strings.TrimSpace(v)); debug {
			c.Log.Level = "debug"
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("detection.confidence_threshold must be between 0 and 1")
	}

	switch c.Detection.Backend {
	case BackendRoboflow, BackendOllama, BackendLlamaCPP:
	default:
		return fmt.Errorf("detection.backend must be %q, %q or %q, got %q",
			BackendRoboflow, BackendOllama, BackendLlamaCPP, c.Detection.Backend)
	}

	if c.Detection.Roboflow.MaxRetries < 0 {
		return fmt.Errorf("detection.roboflow.max_retries cannot be negative")
	}

	for label, v := range c.Detection.Aliases {
		if !denomination.IsKnown(v) {
			return fmt.Errorf("detection.aliases[%q]: %d is not a banknote denomination (want one of %v)",
				label, v, denomination.Values())
		}
	}

	if c.Speech.TTLMinutes < 1 {
		return fmt.Errorf("speech.ttl_minutes must be positive")
	}

	if c.Speech.AudioDir == "" {
		return fmt.Errorf("speech.audio_dir cannot be empty")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

// AuthEnabled reports whether requests must carry the API key
func (c *Config) AuthEnabled() bool {
	return c.Server.APIKey != "" && c.Server.APIKey != DisabledAPIKey
}

// RoboflowConfigured reports whether the hosted detection API has credentials
func (c *Config) RoboflowConfigured() bool {
	return c.Detection.Roboflow.APIKey != "" && c.Detection.Roboflow.Endpoint != ""
}

// Addr returns the listen address for the configured port
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "banknote-assistant", "config.json")
}

// ResolvePath picks the config file to load: the explicit path when set,
// otherwise the default path if a file exists there. An empty result means
// defaults and environment only.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := GetConfigPath(); fileExists(p) {
		return p
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
