package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bowerhall/daylog/internal/alerts"
	"github.com/bowerhall/daylog/internal/assistant"
	"github.com/bowerhall/daylog/internal/blob"
	"github.com/bowerhall/daylog/internal/bot"
	"github.com/bowerhall/daylog/internal/capability"
	"github.com/bowerhall/daylog/internal/collector"
	"github.com/bowerhall/daylog/internal/config"
	"github.com/bowerhall/daylog/internal/conversation"
	"github.com/bowerhall/daylog/internal/device/sim"
	"github.com/bowerhall/daylog/internal/digest"
	"github.com/bowerhall/daylog/internal/engine"
	"github.com/bowerhall/daylog/internal/llm"
	"github.com/bowerhall/daylog/internal/localdb"
	"github.com/bowerhall/daylog/internal/logger"
	"github.com/bowerhall/daylog/internal/status"
	"github.com/bowerhall/daylog/internal/store"
)

func init() {
	godotenv.Load()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", "timezone", cfg.Timezone)
		tz = time.UTC
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal("failed to create data dir", "path", cfg.DataDir, "error", err)
	}

	remote := store.New(store.Config{
		URL:       cfg.Store.URL,
		AnonKey:   cfg.Store.AnonKey,
		TokenPath: filepath.Join(cfg.DataDir, "session.json"),
	})
	signIn(remote, cfg)

	db, err := localdb.Open(filepath.Join(cfg.DataDir, "daylog.db"))
	if err != nil {
		logger.Fatal("failed to open local db", "error", err)
	}
	defer db.Close()

	cache, err := conversation.NewCache(db)
	if err != nil {
		logger.Fatal("failed to create message cache", "error", err)
	}
	syncer := conversation.NewSyncer(remote)
	conv := conversation.NewManager(cache, syncer)

	checkpoints, err := collector.NewCheckpoints(db)
	if err != nil {
		logger.Fatal("failed to create checkpoints", "error", err)
	}

	dev, err := sim.Load(cfg.Collect.DeviceFixture)
	if err != nil {
		logger.Warn("device fixture unavailable, starting empty simulator",
			"path", cfg.Collect.DeviceFixture, "error", err)
		dev = sim.New()
	}
	gate := capability.NewGate(dev)

	// photo mirroring to object storage (optional)
	var mirror collector.BlobMirror
	if cfg.Storage.Enabled {
		blobClient, err := blob.NewClient(blob.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Error("failed to create blob client", "error", err)
		} else {
			initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := blobClient.Init(initCtx); err != nil {
				logger.Error("failed to init blob bucket", "error", err)
			} else {
				mirror = blobClient
				logger.Info("photo mirroring enabled", "endpoint", cfg.Storage.Endpoint)
			}
			cancel()
		}
	}

	location := collector.NewLocationCollector(gate, dev, dev, remote, checkpoints, cfg.Collect)
	photos := collector.NewPhotoCollector(gate, dev, dev, remote, mirror, checkpoints, cfg.Collect, tz)
	calendar := collector.NewCalendarCollector(gate, dev, remote, checkpoints, cfg.Collect, tz)
	coordinator := collector.NewCoordinator(remote, location, photos, calendar)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conv.Load(ctx); err != nil {
		logger.Warn("failed to load conversation", "error", err)
	}
	if err := coordinator.Load(ctx); err != nil {
		logger.Warn("failed to load collection preference", "error", err)
	}

	model, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		logger.Fatal("failed to create llm", "error", err)
	}

	vision, err := llm.New(llm.Config{
		Provider: cfg.Vision.Provider,
		APIKey:   cfg.Vision.APIKey,
		Model:    cfg.Vision.Model,
		BaseURL:  cfg.Vision.BaseURL,
	})
	if err != nil {
		logger.Fatal("failed to create vision llm", "error", err)
	}

	eng := engine.New(remote, model, vision, tz)
	reporter := status.NewReporter(coordinator, syncer, checkpoints)
	asst := assistant.New(conv, eng, coordinator, dev, reporter)

	var bots []bot.Bot
	var enabledProviders []string

	if cfg.Bots.Telegram.Enabled {
		b, err := bot.New(bot.Config{
			Provider:    "telegram",
			Token:       cfg.Bots.Telegram.Token,
			OwnerChatID: cfg.OwnerChatID,
		}, asst)
		if err != nil {
			logger.Fatal("failed to create telegram bot", "error", err)
		}

		bots = append(bots, b)
		enabledProviders = append(enabledProviders, "telegram")

		go b.Start(ctx)
	}

	if cfg.Bots.Discord.Enabled {
		b, err := bot.New(bot.Config{
			Provider: "discord",
			Token:    cfg.Bots.Discord.Token,
		}, asst)
		if err != nil {
			logger.Fatal("failed to create discord bot", "error", err)
		}

		bots = append(bots, b)
		enabledProviders = append(enabledProviders, "discord")

		go b.Start(ctx)
	}

	if len(bots) == 0 {
		logger.Fatal("no bot providers enabled, set TELEGRAM_TOKEN or DISCORD_TOKEN")
	}

	notifyBot := bots[0]

	if cfg.OwnerChatID != 0 {
		alerter := alerts.New(
			func(message string) {
				notifyBot.Send(cfg.OwnerChatID, message)
			},
			time.Hour,
		)
		go alerter.Watch(ctx, "collectors", time.Minute, coordinator.Err)
		logger.Info("error alerting enabled", "chatID", cfg.OwnerChatID)
	}

	if cfg.Digest.Enabled && cfg.Digest.ChatID != 0 {
		runner, err := digest.NewRunner(cfg.Digest.Schedule, eng,
			func(message string) error {
				return notifyBot.Send(cfg.Digest.ChatID, message)
			}, tz)
		if err != nil {
			logger.Fatal("invalid digest schedule", "schedule", cfg.Digest.Schedule, "error", err)
		}
		go runner.Run(ctx)
		logger.Info("daily digest enabled", "schedule", cfg.Digest.Schedule)
	}

	logger.Info("daylog started",
		"bots", enabledProviders,
		"llm", cfg.LLM.Provider,
		"vision", cfg.Vision.Provider,
		"collection", coordinator.Enabled(),
		"data", cfg.DataDir,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	coordinator.Stop()
	cancel()
}

// signIn restores or establishes the store session. A failure is not fatal:
// the daemon runs offline and row operations no-op until a session exists.
func signIn(remote *store.Client, cfg *config.Config) {
	if remote.CurrentUser() != nil {
		logger.Info("session restored", "email", remote.CurrentUser().Email)
		return
	}

	if cfg.Account.Email == "" {
		logger.Warn("no account configured, running unauthenticated")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := remote.SignInWithPassword(ctx, cfg.Account.Email, cfg.Account.Password)
	if err == nil {
		logger.Info("signed in", "email", cfg.Account.Email)
		return
	}
	logger.Debug("sign-in failed, trying sign-up", "error", err)

	if err := remote.SignUp(ctx, cfg.Account.Email, cfg.Account.Password); err == nil {
		logger.Info("account created", "email", cfg.Account.Email)
		return
	}

	logger.Warn("sign-in failed, running offline until connectivity returns", "error", err)
}
