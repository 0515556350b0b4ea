package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mana-voice/backend/internal/config"
	"github.com/zhouzirui/mana-voice/backend/internal/handler"
	"github.com/zhouzirui/mana-voice/backend/internal/service/ai"
	emotionservice "github.com/zhouzirui/mana-voice/backend/internal/service/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/service/orchestrator"
	sessionstore "github.com/zhouzirui/mana-voice/backend/internal/service/session"
	"github.com/zhouzirui/mana-voice/backend/internal/service/speech"
	"github.com/zhouzirui/mana-voice/backend/pkg/log"
	"github.com/zhouzirui/mana-voice/backend/pkg/redact"
)

const version = "dev"

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "mana-api",
		Short:         "Mana voice companion backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a config file (default: ./config.yaml or ./configs/config.yaml)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// .env is optional; the process environment still applies without it.
	envErr := godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	redact.SetEnabled(cfg.Log.Redact)

	if cfg.Server.Banner {
		printBanner()
	}
	if envErr != nil {
		log.Debugw("no .env file loaded, using process environment", "error", envErr)
	}

	store := sessionstore.NewStore()
	deps := orchestrator.Deps{Store: store}

	var aiService *ai.Service
	llm := ""
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Warnw("reply model unavailable, only safety scripts will be served", "provider", cfg.AI.Provider, "error", err)
		} else {
			deps.Responder = aiService
			llm = cfg.AI.Provider
			log.Infow("reply model initialized", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
		}
	} else {
		log.Warnw("no chat model credentials configured, only safety scripts will be served", "provider", cfg.AI.Provider)
	}

	var chatModelForEmotion model.ChatModel
	if aiService != nil {
		chatModelForEmotion = aiService.GetChatModel()
	}
	emotionSvc, err := emotionservice.NewService(ctx, chatModelForEmotion, emotionservice.Config{
		LLMEnabled:   cfg.AI.EmotionLLMEnabled,
		HistoryLimit: cfg.AI.EmotionHistoryLimit,
	})
	if err != nil {
		log.Warnw("emotion guidance unavailable, replies use default tone", "error", err)
	} else {
		deps.Guidance = emotionSvc
		log.Infow("emotion guidance initialized", "llm_refinement", emotionSvc.Enabled())
	}

	speechSvc := speech.NewService(cfg.Speech)
	if speechSvc.CanTranscribe() {
		deps.Transcriber = speechSvc
	}
	if speechSvc.CanSynthesize() {
		deps.Synthesizer = speechSvc
	}
	if !speechSvc.CanTranscribe() && !speechSvc.CanSynthesize() {
		log.Warnw("no speech providers configured, voice turns disabled")
		speechSvc = nil
	} else {
		log.Infow("speech providers initialized", "providers", speechSvc.Providers())
	}

	orch, err := orchestrator.NewService(deps, orchestrator.Config{
		DefaultLanguage:   cfg.Session.DefaultTag(),
		MaxUtteranceRunes: cfg.Session.MaxUtteranceRunes,
		MaxAudioBytes:     cfg.Speech.MaxAudioBytes,
		TurnTimeout:       cfg.Session.TurnTimeout,
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	go sweepSessions(ctx, store, cfg.Session)

	router := handler.NewRouter(cfg.Server, handler.Services{
		Orchestrator: orch,
		Speech:       speechSvc,
		LLM:          llm,
	})
	return startServer(ctx, cfg.Server, router)
}

func printBanner() {
	tpl := "{{ .Title \"MANA\" \"\" 0 }}\nVersion: " + version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

// sweepSessions evicts sessions idle longer than cfg.MaxIdle until ctx ends.
func sweepSessions(ctx context.Context, store *sessionstore.Store, cfg config.SessionConfig) {
	if cfg.MaxIdle <= 0 || cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(cfg.MaxIdle); n > 0 {
				log.Infow("idle sessions evicted", "count", n, "active", store.ActiveCount())
			}
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr, err := serverCfg.Addr()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Infow("mana backend listening", "addr", addr)
	return runServer(ctx, srv, serverCfg.ShutdownTimeout)
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutting down", "timeout", shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
