// Package main provides the entry point for PenaltyPot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mhessel/penaltypot/internal/api"
	"github.com/mhessel/penaltypot/internal/app"
	"github.com/mhessel/penaltypot/internal/config"
	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/notify"
	"github.com/mhessel/penaltypot/internal/singleinstance"
	"github.com/mhessel/penaltypot/internal/store"
	"github.com/mhessel/penaltypot/internal/version"
)

// multiPublisher fans appended entries out to every sink. The app
// services publish once; the SSE hub and the Discord bridge both hang
// off the same call.
type multiPublisher []app.EntryPublisher

func (m multiPublisher) Publish(e *event.Entry) {
	for _, p := range m {
		p.Publish(e)
	}
}

func main() {
	// 1. Single writer check (Windows: named mutex, other: flock)
	release, ok, err := singleinstance.AcquireLock()
	if err != nil {
		log.Fatalf("Failed to acquire lock: %v", err)
	}
	if !ok {
		log.Println("Another instance is already running")
		os.Exit(1)
	}
	defer release()

	// 2. Load configuration (corrupt config falls back to defaults with warning)
	cfg, _ := config.LoadConfig()
	cfg, err = config.ApplyEnvOverrides(cfg)
	if err != nil {
		log.Printf("Warning: invalid environment override: %v", err)
	}
	secrets, secretsStatus, err := config.LoadSecrets()
	if err != nil {
		log.Printf("Warning: %v", err)
	}

	// 3. Ensure LAN auth credentials if LAN mode is enabled
	updated, generatedPw, err := config.EnsureLanAuth(&secrets, cfg.LanEnabled)
	if err != nil {
		log.Fatalf("Failed to ensure LAN auth: %v", err)
	}

	// Only save if loaded successfully or file was missing (prevent overwrite on fallback)
	if updated && secretsStatus != config.SecretsFallback {
		if err := config.SaveSecrets(secrets); err != nil {
			log.Fatalf("Failed to save secrets: %v", err)
		}
		if generatedPw != "" {
			// Write password to file instead of logging
			pwPath, err := config.WritePasswordFile(secrets.BasicAuthUsername, generatedPw)
			if err != nil {
				log.Printf("Warning: failed to write password file: %v", err)
				// Fallback to log output if file write fails
				log.Println("=== GENERATED BASIC AUTH CREDENTIALS ===")
				log.Printf("Username: %s", secrets.BasicAuthUsername)
				log.Printf("Password: %s", generatedPw)
				log.Println("=========================================")
			} else {
				log.Println("=== BASIC AUTH CREDENTIALS GENERATED ===")
				log.Printf("Credentials saved to: %s", pwPath)
				log.Println("Delete this file after saving the credentials!")
				log.Println("=========================================")
			}
		}
	} else if updated && secretsStatus == config.SecretsFallback {
		log.Println("WARNING: Secrets file has errors; new credentials not saved to avoid data loss")
		log.Println("Please fix or delete secrets.json and restart")
	}

	// 4. Parse flags (port can override config)
	port := flag.Int("port", cfg.Port, "HTTP server port")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("PenaltyPot v%s\n", version.String())
		return
	}

	// 5. Open SQLite store
	if _, err := config.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to ensure data directory: %v", err)
	}
	dbPath, err := config.DatabasePath()
	if err != nil {
		log.Fatalf("Failed to resolve database path: %v", err)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 6. Cancellable context for the notifier loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. SSE hub
	hub := api.NewHub()
	go hub.Run()

	// 8. Discord notifier (optional, webhook configured via secrets)
	var notifier *notify.Notifier
	publishers := multiPublisher{hub}
	if !secrets.DiscordWebhookURL.IsEmpty() {
		sender := notify.NewDiscordSender(secrets.DiscordWebhookURL)
		notifier = notify.NewNotifier(sender, cfg.DiscordBatchSec, notify.FilterConfig{
			NotifyOnCommit:     cfg.NotifyOnCommit,
			NotifyOnRoster:     cfg.NotifyOnRoster,
			NotifyOnMultiplier: cfg.NotifyOnMultiplier,
			NotifyOnVerify:     cfg.NotifyOnVerify,
			NotifyOnSummary:    cfg.NotifyOnSummary,
		})
		go notifier.Run(ctx)
		publishers = append(publishers, &notify.EntryBridge{Notifier: notifier, Source: db})
		log.Println("Discord notifications enabled")
	} else {
		log.Println("Discord webhook not configured, notifications disabled")
	}

	// 9. Build services on the shared publisher
	health := app.HealthService{Version: version.String(), Started: time.Now()}
	refService := &app.RefService{Store: db}
	sessionService := &app.SessionService{Store: db, Publisher: publishers}
	entryService := &app.EntryService{Store: db, Publisher: publishers}
	verifyService := &app.VerifyService{Store: db, Publisher: publishers}
	reportService := &app.ReportService{Store: db}

	// 10. Determine bind address
	host := "127.0.0.1"
	if cfg.LanEnabled {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, *port)

	serverOpts := []api.ServerOption{
		api.WithRefUsecase(refService),
		api.WithSessionsUsecase(sessionService),
		api.WithEntriesUsecase(entryService),
		api.WithVerifyUsecase(verifyService),
		api.WithReportUsecase(reportService),
		api.WithHub(hub),
	}

	// Basic Auth and rate limiting for LAN mode (credentials are
	// guaranteed by EnsureLanAuth)
	if cfg.LanEnabled {
		serverOpts = append(serverOpts,
			api.WithBasicAuth(secrets.BasicAuthUsername, secrets.BasicAuthPassword.Value()),
			api.WithStreamSecret([]byte(secrets.StreamSecret.Value())),
			api.WithRateLimiter(api.NewRateLimiter(api.DefaultRateLimiterConfig())),
		)
		log.Println("Basic Auth enabled for LAN mode")
	}

	server := api.NewServer(addr, health, serverOpts...)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)

	go func() {
		log.Printf("Starting PenaltyPot v%s on %s", version.String(), addr)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-done:
		log.Println("Shutting down...")
	case err := <-errCh:
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}

	cancel()

	// Stop notifier gracefully (best-effort flush)
	if notifier != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := notifier.Stop(stopCtx); err != nil {
			log.Printf("Notifier stop error: %v", err)
		}
		stopCancel()
	}

	// Stop SSE hub (closes all subscriber channels)
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
