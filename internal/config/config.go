package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

// Config aggregates every setting the service reads.
type Config struct {
	Server    ServerConfig
	Chat      ChatConfig
	Sentiment SentimentConfig
	Speech    SpeechConfig

	// Greeting, when non-empty, is appended as the first assistant
	// turn of every new session.
	Greeting string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	sentiment, err := loadSentimentConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Chat:      chat,
		Sentiment: sentiment,
		Speech:    speech,
		Greeting:  strings.TrimSpace(os.Getenv("GREETING")),
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

// ChatConfig describes the locally hosted chat model.
type ChatConfig struct {
	BaseURL        string
	Model          string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	HistoryLimit   int
	TimeoutSeconds int
	StreamResponse bool
}

// Enabled reports whether a chat model is configured.
func (c ChatConfig) Enabled() bool {
	return c.Model != ""
}

// Timeout returns the per-turn deadline for model calls.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewChatModel builds an eino chat model backed by the Ollama server.
func (c ChatConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("OLLAMA_MODEL is not configured")
	}

	options := &api.Options{}
	if c.Temperature != nil {
		options.Temperature = float32(*c.Temperature)
	}
	if c.TopP != nil {
		options.TopP = float32(*c.TopP)
	}
	if c.MaxTokens != nil {
		options.NumPredict = *c.MaxTokens
	}

	cfg := &ollama.ChatModelConfig{
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout(),
		HTTPClient: &http.Client{
			Timeout: c.Timeout(),
		},
		Options: options,
	}

	return ollama.NewChatModel(ctx, cfg)
}

func loadChatConfig() (ChatConfig, error) {
	temperature, err := parseOptionalFloatEnv("CHAT_TEMPERATURE")
	if err != nil {
		return ChatConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("CHAT_TOP_P")
	if err != nil {
		return ChatConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("CHAT_MAX_TOKENS")
	if err != nil {
		return ChatConfig{}, err
	}

	stream, err := parseBoolEnv("CHAT_STREAM", true)
	if err != nil {
		return ChatConfig{}, err
	}

	historyLimit := 20
	if limitOverride, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if limitOverride != nil {
		if *limitOverride < 1 {
			historyLimit = 1
		} else {
			historyLimit = *limitOverride
		}
	}

	timeoutSeconds := 60
	if timeoutOverride, err := parseOptionalIntEnv("CHAT_TIMEOUT"); err != nil {
		return ChatConfig{}, err
	} else if timeoutOverride != nil && *timeoutOverride > 0 {
		timeoutSeconds = *timeoutOverride
	}

	return ChatConfig{
		BaseURL:        getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		Model:          getEnvOrDefault("OLLAMA_MODEL", "llama3.2"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		HistoryLimit:   historyLimit,
		TimeoutSeconds: timeoutSeconds,
		StreamResponse: stream,
	}, nil
}

// SentimentConfig describes the sentiment classifier backend.
type SentimentConfig struct {
	BaseURL           string
	Token             string
	TimeoutSeconds    int
	LLMEnabled        bool
	DistressThreshold float64
}

// Timeout returns the per-call deadline for classifier requests.
func (c SentimentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func loadSentimentConfig() (SentimentConfig, error) {
	llmEnabled, err := parseBoolEnv("SENTIMENT_LLM_ENABLED", false)
	if err != nil {
		return SentimentConfig{}, err
	}

	timeoutSeconds := 15
	if timeoutOverride, err := parseOptionalIntEnv("SENTIMENT_TIMEOUT"); err != nil {
		return SentimentConfig{}, err
	} else if timeoutOverride != nil && *timeoutOverride > 0 {
		timeoutSeconds = *timeoutOverride
	}

	threshold := 0.85
	if thresholdOverride, err := parseOptionalFloatEnv("SENTIMENT_DISTRESS_THRESHOLD"); err != nil {
		return SentimentConfig{}, err
	} else if thresholdOverride != nil {
		if *thresholdOverride < 0 || *thresholdOverride > 1 {
			return SentimentConfig{}, fmt.Errorf("SENTIMENT_DISTRESS_THRESHOLD must be within [0,1], got %v", *thresholdOverride)
		}
		threshold = *thresholdOverride
	}

	return SentimentConfig{
		BaseURL:           strings.TrimSpace(os.Getenv("SENTIMENT_BASE_URL")),
		Token:             strings.TrimSpace(os.Getenv("SENTIMENT_TOKEN")),
		TimeoutSeconds:    timeoutSeconds,
		LLMEnabled:        llmEnabled,
		DistressThreshold: threshold,
	}, nil
}

// SpeechConfig describes the recognition and synthesis backends.
type SpeechConfig struct {
	ASRBaseURL string
	ASRKey     string
	TTSBaseURL string
	Language   string
	TTSSpeed   float32
	Timeout    int
	Enabled    bool
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	asrBaseURL := strings.TrimSpace(os.Getenv("SPEECH_ASR_BASE_URL"))
	ttsBaseURL := strings.TrimSpace(os.Getenv("SPEECH_TTS_BASE_URL"))

	return SpeechConfig{
		ASRBaseURL: asrBaseURL,
		ASRKey:     strings.TrimSpace(os.Getenv("SPEECH_ASR_KEY")),
		TTSBaseURL: ttsBaseURL,
		Language:   getEnvOrDefault("SPEECH_LANGUAGE", "en-US"),
		TTSSpeed:   ttsSpeed,
		Timeout:    timeoutSeconds,
		Enabled:    asrBaseURL != "" || ttsBaseURL != "",
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
