// Command taskboardd is the taskboard server daemon.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BlackHan26/taskboard/config"
	"github.com/BlackHan26/taskboard/internal/version"
	"github.com/BlackHan26/taskboard/notify"
	"github.com/BlackHan26/taskboard/server"
	"github.com/BlackHan26/taskboard/task"
	"github.com/BlackHan26/taskboard/team"
	"github.com/BlackHan26/taskboard/todo"
)

var configPath = flag.String("config", "taskboard.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	logger.Info("starting taskboardd",
		"version", version.Version,
		"commit", version.Commit,
	)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", cfg.DataDir, err)
	}

	tasks, err := task.NewSQLiteStore(filepath.Join(cfg.DataDir, "tasks.db"))
	if err != nil {
		log.Fatalf("Failed to open task store: %v", err)
	}
	defer tasks.Close()

	teams, err := team.NewSQLiteStore(filepath.Join(cfg.DataDir, "teams.db"))
	if err != nil {
		log.Fatalf("Failed to open team store: %v", err)
	}
	defer teams.Close()

	todos, err := todo.NewSQLiteStore(filepath.Join(cfg.DataDir, "todos.db"))
	if err != nil {
		log.Fatalf("Failed to open todo store: %v", err)
	}
	defer todos.Close()

	bus := notify.NewInMemoryBus(nil)
	fanout := notify.NewTeamNotifier(teams, bus, logger)
	announcer := notify.NewTransitionAnnouncer(teams, fanout, nil, logger)

	taskSvc := task.NewService(tasks, teams, announcer, nil, logger)
	todoSvc := todo.NewService(todos, nil)
	sweeper := task.NewSweeper(taskSvc.Engine, announcer, nil, logger)

	srv := server.New(*cfg, version.Version, logger)
	srv.SetTaskService(taskSvc)
	srv.SetTodoService(todoSvc)
	srv.SetTeamStore(teams)
	srv.SetInbox(bus)
	srv.SetSweeper(sweeper)

	// Mirror transitions onto the SSE stream.
	announcer.Broadcast = srv.BroadcastEvent

	if cfg.Sweep.Enabled {
		sweeper.Start()
		defer sweeper.Stop()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server stopped", "err", err)
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

// logLevel maps the config string onto an slog level.
func logLevel(s string) slog.Level {
	switch s {
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
