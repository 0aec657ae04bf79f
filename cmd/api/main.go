package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-debate/backend/internal/config"
	"github.com/zhouzirui/z-debate/backend/internal/handler"
	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
	"github.com/zhouzirui/z-debate/backend/internal/service/ai"
	"github.com/zhouzirui/z-debate/backend/internal/service/backend"
	"github.com/zhouzirui/z-debate/backend/internal/service/debate"
	"github.com/zhouzirui/z-debate/backend/internal/service/ratelimit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	profiles := persona.Seed()
	if cfg.Debate.PersonasFile != "" {
		profiles, err = persona.LoadProfiles(cfg.Debate.PersonasFile, profiles)
		if err != nil {
			log.Fatalf("failed to load persona profiles: %v", err)
		}
		log.Printf("persona profiles loaded from %s", cfg.Debate.PersonasFile)
	}
	personaStore := persona.NewMemoryStore(profiles)

	reportCredentials(cfg)

	limiter := ratelimit.New(cfg.Backends.MinInterval)
	registry, err := backend.Build(ctx, cfg, limiter)
	if err != nil {
		log.Fatalf("failed to build backends: %v", err)
	}
	if len(registry.Available()) == 0 {
		log.Println("warning: no persona has a usable backend, every turn will be skipped")
	}

	engine := debate.NewEngine(registry, ai.NewPromptBuilder(personaStore), debate.Options{
		HistoryWindow: cfg.Debate.HistoryWindow,
		MaxTurns:      cfg.Debate.MaxTurns,
	})

	scriptLog, err := debate.NewScriptLog(cfg.Debate.ScriptLogDir)
	if err != nil {
		log.Fatalf("failed to prepare script log: %v", err)
	}

	turnDelay := cfg.Debate.TurnDelay
	if turnDelay == 0 {
		turnDelay = -1
	}
	debateService := debate.NewService(debate.NewStore(), engine, debate.ServiceOptions{
		Pacing: debate.PacerOptions{TurnDelay: turnDelay, AckTimeout: cfg.Debate.AckTimeout},
		Script: scriptLog,
	})
	if cfg.Debate.AckTimeout == 0 {
		log.Println("DEBATE_ACK_TIMEOUT not set, live runs wait for viewer acknowledgment without a ceiling")
	}

	go pruneSessions(ctx, debateService, cfg.Debate.SessionTTL)

	router := handler.NewRouter(personaStore, registry, debateService)

	startServer(ctx, cfg.Server, router)
}

// reportCredentials 打印各家后端凭证是否就绪
func reportCredentials(cfg *config.Config) {
	for _, id := range persona.IDs {
		pc := cfg.Backends.Personas[id]
		status := "Missing"
		if cfg.Backends.Credentialed(id, cfg.AI) {
			status = "Loaded"
		}
		log.Printf("%s (%s via %s): %s", id, pc.Provider, pc.Kind, status)
	}
}

func pruneSessions(ctx context.Context, svc *debate.Service, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Prune(ctx, ttl)
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Z Debate backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
