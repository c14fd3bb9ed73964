// Package main is the entry point for the bootloader config daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zot/bootconfd/internal/config"
	"github.com/zot/bootconfd/internal/server"
	"github.com/zot/bootconfd/internal/snapshot"
	"github.com/zot/bootconfd/internal/storage"
	"github.com/zot/bootconfd/internal/watcher"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootconfd: %v\n", err)
		return 1
	}

	store, err := openStorage(cfg)
	if err != nil {
		log.Printf("cannot open snapshot storage: %v", err)
		return 1
	}
	defer store.Close()

	svc := snapshot.New(cfg, store, snapshot.ExecRunner{})
	if err := svc.Initialize(); err != nil {
		log.Printf("cannot initialize snapshot storage: %v", err)
		return 1
	}

	srv := server.New(cfg, svc)
	if err := srv.Start(); err != nil {
		log.Printf("cannot start server: %v", err)
		return 1
	}

	w, err := watcher.New(cfg, srv.NotifyFileChanged)
	if err != nil {
		log.Printf("cannot watch %s: %v", cfg.Grub.ConfigPath, err)
		return 1
	}
	defer w.Close()

	// The watch loop never terminates on its own; a failure there
	// breaks the freshness guarantee, so the process exits with it.
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Run()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case err := <-watchErr:
		log.Printf("file watch failed: %v", err)
		code = 1
	case s := <-sig:
		cfg.Log(0, "received %v, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	return code
}

// openStorage opens the configured storage backend.
func openStorage(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Type {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite", "":
		return storage.NewSQLiteStorage(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
