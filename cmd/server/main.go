package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/BioHazard786/peerbeam/internal/config"
	"github.com/BioHazard786/peerbeam/internal/logging"
	"github.com/BioHazard786/peerbeam/internal/server"
	"github.com/BioHazard786/peerbeam/internal/signaling"
)

func main() {
	var (
		flagPort   = flag.Int("port", 0, "listen port")
		flagWindow = flag.Duration("room-window", 0, "room inactivity window")
	)
	flag.Parse()

	logging.Init()
	log := slog.Default()

	cfg, err := config.Load(config.Options{
		Port:       *flagPort,
		RoomWindow: *flagWindow,
	})
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := signaling.NewHub(cfg.RoomWindow, log)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.Health)
	mux.HandleFunc("/ws", server.ServeWs(hub, log))

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting signaling server", "addr", cfg.Addr(), "room_window", cfg.RoomWindow)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
