package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Backends BackendsConfig
	Debate   DebateConfig
	AI       AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	backends, err := loadBackendsConfig()
	if err != nil {
		return nil, err
	}

	debate, err := loadDebateConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Backends: backends, Debate: debate, AI: ai}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3001"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3001" 或 "127.0.0.1:3001"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Backend kinds a persona can be routed to.
const (
	KindOpenAICompatible = "openai-compatible"
	KindAnthropic        = "anthropic"
	KindArk              = "ark"
)

// ProviderConfig 描述单个角色所绑定的模型后端。
type ProviderConfig struct {
	Provider  string
	Kind      string
	APIKey    string
	BaseURL   string
	Model     string
	KeyEnvVar string
}

// BackendsConfig 描述四个辩手的模型后端以及共享的调用参数。
type BackendsConfig struct {
	Personas    map[persona.ID]ProviderConfig
	MaxTokens   int
	Temperature float32
	MinInterval time.Duration
}

type providerDefaults struct {
	provider string
	kind     string
	keyEnv   string
	model    string
	baseURL  string
}

var defaultProviders = map[persona.ID]providerDefaults{
	persona.Grok:     {provider: "xai", kind: KindOpenAICompatible, keyEnv: "XAI_API_KEY", model: "grok-2-1212", baseURL: "https://api.x.ai"},
	persona.Claude:   {provider: "anthropic", kind: KindAnthropic, keyEnv: "CLAUDE_API_KEY", model: "claude-3-5-sonnet-20241022", baseURL: "https://api.anthropic.com"},
	persona.ChatGPT:  {provider: "openai", kind: KindOpenAICompatible, keyEnv: "OPENAI_API_KEY", model: "gpt-3.5-turbo", baseURL: "https://api.openai.com"},
	persona.DeepSeek: {provider: "deepseek", kind: KindOpenAICompatible, keyEnv: "DEEPSEEK_API_KEY", model: "deepseek-chat", baseURL: "https://api.deepseek.com"},
}

func loadBackendsConfig() (BackendsConfig, error) {
	maxTokens := 150
	if override, err := parseOptionalIntEnv("BACKEND_MAX_TOKENS"); err != nil {
		return BackendsConfig{}, err
	} else if override != nil && *override > 0 {
		maxTokens = *override
	}

	temperature := float32(0.2)
	if override, err := parseOptionalFloat32Env("BACKEND_TEMPERATURE"); err != nil {
		return BackendsConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	minInterval, err := parseDurationEnv("BACKEND_MIN_INTERVAL", time.Second)
	if err != nil {
		return BackendsConfig{}, err
	}

	personas := make(map[persona.ID]ProviderConfig, len(defaultProviders))
	for _, id := range persona.IDs {
		defaults := defaultProviders[id]
		prefix := string(id)

		pc := ProviderConfig{
			Provider:  defaults.provider,
			Kind:      defaults.kind,
			APIKey:    strings.TrimSpace(os.Getenv(defaults.keyEnv)),
			BaseURL:   getEnvOrDefault(prefix+"_BASE_URL", defaults.baseURL),
			Model:     getEnvOrDefault(prefix+"_MODEL", defaults.model),
			KeyEnvVar: defaults.keyEnv,
		}

		switch kind := strings.ToLower(strings.TrimSpace(os.Getenv(prefix + "_BACKEND"))); kind {
		case "", "default":
		case KindArk:
			// 通过火山方舟托管的模型接入，凭证沿用 ARK_* 配置。
			pc.Provider = KindArk
			pc.Kind = KindArk
			pc.APIKey = ""
			pc.BaseURL = ""
			pc.Model = strings.TrimSpace(os.Getenv(prefix + "_MODEL"))
			pc.KeyEnvVar = "ARK_API_KEY"
		default:
			return BackendsConfig{}, fmt.Errorf("invalid %s_BACKEND value %q", prefix, kind)
		}

		personas[id] = pc
	}

	return BackendsConfig{
		Personas:    personas,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		MinInterval: minInterval,
	}, nil
}

// Credentialed 表示该角色的后端凭证是否齐全。
func (c BackendsConfig) Credentialed(id persona.ID, ai AIConfig) bool {
	pc, ok := c.Personas[id]
	if !ok {
		return false
	}
	if pc.Kind == KindArk {
		return ai.Enabled()
	}
	return pc.APIKey != ""
}

// DebateConfig 描述辩论节奏与会话生命周期。
type DebateConfig struct {
	MaxTurns      int
	HistoryWindow int
	TurnDelay     time.Duration
	AckTimeout    time.Duration
	SessionTTL    time.Duration
	ScriptLogDir  string
	PersonasFile  string
}

func loadDebateConfig() (DebateConfig, error) {
	maxTurns := 100
	if override, err := parseOptionalIntEnv("DEBATE_MAX_TURNS"); err != nil {
		return DebateConfig{}, err
	} else if override != nil && *override > 0 {
		maxTurns = *override
	}

	window := 8
	if override, err := parseOptionalIntEnv("DEBATE_HISTORY_WINDOW"); err != nil {
		return DebateConfig{}, err
	} else if override != nil {
		if *override < 1 {
			window = 1
		} else {
			window = *override
		}
	}

	turnDelay, err := parseDurationEnv("DEBATE_TURN_DELAY", 2*time.Second)
	if err != nil {
		return DebateConfig{}, err
	}

	// 0 表示不限制等待前端打字动画完成的时间。
	ackTimeout, err := parseDurationEnv("DEBATE_ACK_TIMEOUT", 0)
	if err != nil {
		return DebateConfig{}, err
	}

	ttl, err := parseDurationEnv("SESSION_TTL", time.Hour)
	if err != nil {
		return DebateConfig{}, err
	}

	return DebateConfig{
		MaxTurns:      maxTurns,
		HistoryWindow: window,
		TurnDelay:     turnDelay,
		AckTimeout:    ackTimeout,
		SessionTTL:    ttl,
		ScriptLogDir:  strings.TrimSpace(os.Getenv("SCRIPT_LOG_DIR")),
		PersonasFile:  strings.TrimSpace(os.Getenv("PERSONAS_FILE")),
	}, nil
}

// AIConfig 描述火山方舟模型相关配置，供选择 ark 后端的角色使用。
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	TopP      *float64
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个方舟模型实例。modelName 为空时使用 ARK_MODEL。
func (c AIConfig) NewChatModel(ctx context.Context, modelName string, maxTokens int, temperature float32) (model.BaseChatModel, error) {
	if strings.TrimSpace(modelName) != "" {
		c.Model = strings.TrimSpace(modelName)
	}
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var tokens *int
	if maxTokens > 0 {
		tokens = &maxTokens
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   tokens,
		Temperature: &temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	modelName := strings.TrimSpace(os.Getenv("ARK_MODEL"))
	if modelName == "" {
		modelName = strings.TrimSpace(os.Getenv("Model"))
	}

	return AIConfig{
		APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:     modelName,
		BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		TopP:      topP,
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

// parseDurationEnv 接受 Go 时长格式（"1500ms"、"2s"）或纯数字毫秒。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if ms, err := strconv.Atoi(raw); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}
