package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach-engine/internal/app"
	"outreach-engine/internal/config"
	"outreach-engine/internal/infrastructure/mail"

	"github.com/joho/godotenv"
)

func main() {
	authorize := flag.Bool("authorize", false, "run the Gmail OAuth consent flow, store the token and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *authorize {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := mail.Authorize(ctx, cfg.Mail.CredentialsFile, cfg.Mail.TokenFile, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("gmail authorization failed: %v", err)
		}
		return
	}

	logger := log.New(os.Stdout, "", log.LstdFlags|log.LUTC)
	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	bootstrap, cleanup, err := app.Bootstrap(rootCtx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to bootstrap app: %v", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Printf("cleanup error: %v", err)
		}
	}()

	if err := bootstrap.Container.Start(rootCtx); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}

	addr, err := app.ListenAddr(cfg.App.HTTPPort)
	if err != nil {
		log.Fatalf("invalid HTTP port: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bootstrap.Fiber.Listen(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("server error: %v", err)
		}
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bootstrap.Fiber.ShutdownWithContext(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := bootstrap.Container.Stop(ctx); err != nil {
		log.Printf("engine stop error: %v", err)
	}
	stopRoot()
}
