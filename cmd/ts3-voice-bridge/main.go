// Command ts3-voice-bridge joins a TeamSpeak-3 server as a headless voice
// client and exposes the play/pause/stop/FX control surface over a local
// gRPC-equivalent listener: signal-driven context, a single slog.Logger
// threaded into every component, then a blocking serve loop with graceful
// shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yichen11818/NeteaseTSBot/bridge"
	"github.com/yichen11818/NeteaseTSBot/bridge/control"
	"github.com/yichen11818/NeteaseTSBot/bridge/events"
	"github.com/yichen11818/NeteaseTSBot/bridge/state"
	"github.com/yichen11818/NeteaseTSBot/bridge/ts3"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := bridge.LoadConfig()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	listenAddr := cfg.ListenAddr
	if len(os.Args) > 1 {
		listenAddr = os.Args[1]
	}

	logger := newLogger(cfg)
	logger.Info("starting ts3 voice bridge", "listen_addr", listenAddr, "ts3_host", cfg.TS3Host, "ts3_port", cfg.TS3Port)

	bus := events.NewBus(logger)
	defer bus.Shutdown()

	fxSnapshot := state.LoadSnapshot(cfg.PersistedStateFile)
	persister := state.NewPersister(cfg.PersistedStateFile, logger)
	defer persister.Shutdown()

	store := state.NewStore(fxSnapshot, persister.Enqueue)

	actor, err := ts3.NewActor(ts3.Config{
		Host:            cfg.TS3Host,
		Port:            cfg.TS3Port,
		Nickname:        cfg.TS3Nickname,
		ServerPassword:  cfg.TS3ServerPassword,
		ChannelPassword: cfg.TS3ChannelPassword,
		ChannelPath:     cfg.TS3ChannelPath,
		ChannelID:       cfg.TS3ChannelID,
		Identity:        cfg.TS3Identity,
		IdentityFile:    cfg.TS3IdentityFile,
		AvatarDir:       cfg.AvatarDir,
	}, bus, logger)
	if err != nil {
		logger.Error("ts3 identity resolution failed", "error", err)
		os.Exit(1)
	}
	go actor.Run(ctx)

	svc := control.NewService(store, bus, actor, logger)
	server := control.NewServer(svc, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listenAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		server.Stop()
		<-serveErr
	case err := <-serveErr:
		// a gRPC bind failure at startup is the only fatal error here.
		cancel()
		logger.Error("control server stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newLogger builds the base slog.Logger, optionally rotating to a log file
// via lumberjack when one is configured, with a single logger threaded
// into every component.
func newLogger(cfg bridge.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	return slog.New(slog.NewTextHandler(rotator, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

