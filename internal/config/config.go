package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func Load() (*Config, error) {
	dataDir := os.Getenv("DAYLOG_DATA")
	if dataDir == "" {
		dataDir = "data"
	}

	timezone := os.Getenv("TZ")
	if timezone == "" {
		timezone = "UTC"
	}

	storeConfig, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	llmConfig, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:     dataDir,
		Timezone:    timezone,
		OwnerChatID: loadOwnerChatID(),
		Store:       storeConfig,
		Account:     loadAccountConfig(),
		LLM:         llmConfig,
		Vision:      loadVisionConfig(llmConfig),
		Bots:        loadMultiBotConfig(),
		Storage:     loadStorageConfig(),
		Collect:     defaultCollectConfig(),
		Digest:      loadDigestConfig(),
	}

	// optional YAML tuning file layered over the defaults
	if path := os.Getenv("DAYLOG_CONFIG"); path != "" {
		if err := applyTuningFile(cfg, path); err != nil {
			return nil, fmt.Errorf("tuning file %s: %w", path, err)
		}
	}

	return cfg, nil
}

// loadStoreConfig requires the remote store URL and key. Collection and query
// calls fail closed without them, so refuse to start instead.
func loadStoreConfig() (StoreConfig, error) {
	url := os.Getenv("STORE_URL")
	if url == "" {
		return StoreConfig{}, fmt.Errorf("STORE_URL not set")
	}

	key := os.Getenv("STORE_ANON_KEY")
	if key == "" {
		return StoreConfig{}, fmt.Errorf("STORE_ANON_KEY not set")
	}

	return StoreConfig{URL: url, AnonKey: key}, nil
}

func loadAccountConfig() AccountConfig {
	return AccountConfig{
		Email:    os.Getenv("DAYLOG_EMAIL"),
		Password: os.Getenv("DAYLOG_PASSWORD"),
	}
}

func loadOwnerChatID() int64 {
	id, err := strconv.ParseInt(os.Getenv("OWNER_CHAT_ID"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func loadLLMConfig() (LLMConfig, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	apiKey, err := getAPIKey(provider, "LLM")
	if err != nil {
		return LLMConfig{}, err
	}

	return LLMConfig{
		Provider: provider,
		APIKey:   apiKey,
		Model:    os.Getenv("LLM_MODEL"),
		BaseURL:  os.Getenv("LLM_BASE_URL"),
	}, nil
}

// loadVisionConfig falls back to the chat provider when no image-capable
// provider is configured separately.
func loadVisionConfig(chat LLMConfig) LLMConfig {
	provider := os.Getenv("VISION_PROVIDER")
	if provider == "" {
		return LLMConfig{
			Provider: chat.Provider,
			APIKey:   chat.APIKey,
			Model:    os.Getenv("VISION_MODEL"),
			BaseURL:  chat.BaseURL,
		}
	}

	apiKey, err := getAPIKey(provider, "VISION")
	if err != nil {
		// vision is best-effort, degrade to the chat provider
		return chat
	}

	return LLMConfig{
		Provider: provider,
		APIKey:   apiKey,
		Model:    os.Getenv("VISION_MODEL"),
		BaseURL:  os.Getenv("VISION_BASE_URL"),
	}
}

func loadMultiBotConfig() MultiBot {
	telegramToken := os.Getenv("TELEGRAM_TOKEN")
	discordToken := os.Getenv("DISCORD_TOKEN")

	return MultiBot{
		Telegram: BotInstance{
			Enabled: telegramToken != "",
			Token:   telegramToken,
		},
		Discord: BotInstance{
			Enabled: discordToken != "",
			Token:   discordToken,
		},
	}
}

func loadStorageConfig() StorageConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	return StorageConfig{
		Enabled:   accessKey != "" && secretKey != "",
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	}
}

func defaultCollectConfig() CollectConfig {
	fixture := os.Getenv("DAYLOG_DEVICE")
	if fixture == "" {
		fixture = "device.yml"
	}

	return CollectConfig{
		DeviceFixture:    fixture,
		LocationInterval: 2 * time.Hour,
		CoarseThresholdM: 500,
		FineThresholdM:   100,
		PhotoInterval:    30 * time.Minute,
		PhotoMaxPerPoll:  50,
		CalendarInterval: 30 * time.Minute,
	}
}

func loadDigestConfig() DigestConfig {
	schedule := os.Getenv("DIGEST_SCHEDULE")
	if schedule == "" {
		schedule = "0 21 * * *"
	}

	var chatID int64
	if id, err := strconv.ParseInt(os.Getenv("DIGEST_CHAT_ID"), 10, 64); err == nil {
		chatID = id
	}

	return DigestConfig{
		Enabled:  chatID != 0,
		Schedule: schedule,
		ChatID:   chatID,
	}
}

func getAPIKey(provider, prefix string) (string, error) {
	envKey := os.Getenv(prefix + "_API_KEY")
	if envKey != "" {
		return envKey, nil
	}

	switch provider {
	case "claude":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return key, nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		return key, nil
	case "ollama":
		// Ollama doesn't need an API key
		return "ollama", nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}
}
