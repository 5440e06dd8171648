package config

import "time"

type Config struct {
	DataDir     string
	Timezone    string
	OwnerChatID int64
	Store       StoreConfig
	Account     AccountConfig
	LLM         LLMConfig
	Vision      LLMConfig
	Bots        MultiBot
	Storage     StorageConfig
	Collect     CollectConfig
	Digest      DigestConfig
}

type StoreConfig struct {
	URL     string
	AnonKey string
}

type AccountConfig struct {
	Email    string
	Password string
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type BotInstance struct {
	Enabled bool
	Token   string
}

type MultiBot struct {
	Telegram BotInstance
	Discord  BotInstance
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// CollectConfig tunes the three collectors. Defaults match the intervals the
// collectors were designed around; a YAML tuning file can override them.
type CollectConfig struct {
	DeviceFixture    string
	LocationInterval time.Duration
	CoarseThresholdM float64
	FineThresholdM   float64
	PhotoInterval    time.Duration
	PhotoMaxPerPoll  int
	CalendarInterval time.Duration
}

type DigestConfig struct {
	Enabled  bool
	Schedule string
	ChatID   int64
}
