package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Provider names a model gateway backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderArk    Provider = "ark"
)

// Config aggregates all service settings.
type Config struct {
	Server      ServerConfig
	AI          AIConfig
	Store       StoreConfig
	Log         LogConfig
	PromptsFile string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Store:  store,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
		PromptsFile: strings.TrimSpace(os.Getenv("CATALYST_PROMPTS_FILE")),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig controls logrus level and formatter.
type LogConfig struct {
	Level  string
	Format string
}

// AIConfig describes the model gateway.
type AIConfig struct {
	Provider     Provider
	Model        string
	GeminiAPIKey string
	APIKey       string
	AccessKey    string
	SecretKey    string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
}

// Enabled reports whether the selected provider has the credentials it needs.
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	default:
		return false
	}
}

// NewArkChatModel creates an Ark chat model from the configuration.
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing, provide ARK_API_KEY + model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := Provider(strings.ToLower(getEnvOrDefault("CATALYST_PROVIDER", string(ProviderGemini))))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid CATALYST_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("CATALYST_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("CATALYST_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("CATALYST_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	model := strings.TrimSpace(os.Getenv("CATALYST_MODEL"))
	if model == "" {
		switch provider {
		case ProviderGemini:
			model = "gemini-2.5-flash"
		case ProviderArk:
			model = strings.TrimSpace(os.Getenv("Model"))
		}
	}

	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if geminiKey == "" {
		geminiKey = strings.TrimSpace(os.Getenv("API_KEY"))
	}

	return AIConfig{
		Provider:     provider,
		Model:        model,
		GeminiAPIKey: geminiKey,
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
	}, nil
}

// StoreConfig selects and configures the session store.
type StoreConfig struct {
	Backend       string
	Path          string
	Key           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("CATALYST_STORE", "file"))

	var defaultPath string
	switch backend {
	case "file":
		defaultPath = "data/catalyst_sessions.json"
	case "sqlite":
		defaultPath = "data/catalyst.db"
	case "redis", "memory":
	default:
		return StoreConfig{}, fmt.Errorf("invalid CATALYST_STORE value %q", backend)
	}

	redisDB := 0
	if db, err := parseOptionalIntEnv("CATALYST_REDIS_DB"); err != nil {
		return StoreConfig{}, err
	} else if db != nil {
		redisDB = *db
	}

	return StoreConfig{
		Backend:       backend,
		Path:          getEnvOrDefault("CATALYST_STORE_PATH", defaultPath),
		Key:           getEnvOrDefault("CATALYST_STORE_KEY", "catalyst_sessions"),
		RedisAddr:     getEnvOrDefault("CATALYST_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: strings.TrimSpace(os.Getenv("CATALYST_REDIS_PASSWORD")),
		RedisDB:       redisDB,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
