// Command conduit is the thin wiring binary spec §1 carves out of the
// core: kong-parsed flags load a pkg/config.Config, construct the core's
// persisted stores and an orchestrator.Orchestrator over them, and block
// until shutdown. It does not parse task-submission commands, serve
// HTTP/WebSocket routes, or speak any provider/MCP wire protocol — those
// are the thin, out-of-scope layers spec §1 names; this binary only
// proves the core's constructors compose into a runnable process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/arclane/conduit/pkg/bandit"
	"github.com/arclane/conduit/pkg/config"
	"github.com/arclane/conduit/pkg/edgestore"
	"github.com/arclane/conduit/pkg/observability"
	"github.com/arclane/conduit/pkg/orchestrator"
	"github.com/arclane/conduit/pkg/session"
	"github.com/arclane/conduit/pkg/store"
)

// CLI is kong's root command tree, mirroring the teacher's
// cmd/hector/main.go CLI struct shape: one struct field per subcommand
// plus flags shared by all of them.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the orchestrator core and block until shutdown."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config   string `short:"c" help:"Path to config file (YAML/TOML/JSON)." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd prints the build version, per the teacher's VersionCmd.
type VersionCmd struct{}

// Run implements kong's command interface for VersionCmd.
func (c *VersionCmd) Run() error {
	fmt.Println("conduit (dev)")
	return nil
}

// ServeCmd constructs the core's stores and orchestrator from
// configuration and runs until an interrupt or term signal arrives.
type ServeCmd struct {
	Slots int `help:"Number of agent slots in the orchestrator's pool." default:"4"`
}

// Run builds the core out of cfg and blocks on a shutdown signal,
// following the teacher's ServeCmd.Run(cli *CLI) shape: load config,
// wire collaborators, install a signal handler, run.
func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("conduit: shutting down")
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("conduit: load config: %w", err)
	}
	if loader != nil {
		defer loader.Close()
	}

	if _, err := observability.InitGlobalTracer(ctx, observability.TracerConfig{
		Enabled:     cfg.Logger != nil && cfg.Logger.Level == "debug",
		ServiceName: observability.DefaultServiceName,
	}); err != nil {
		return fmt.Errorf("conduit: init tracer: %w", err)
	}

	backend := store.BackendFromDSN(cfg.Database.DSN)
	sessionStore, closeSession, err := session.Bootstrap(session.Dialect(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("conduit: bootstrap session store: %w", err)
	}
	defer closeSession()
	_ = sessionStore // exercised by turn-loop callers wired outside this thin binary

	edgeStore, closeEdges, err := edgestore.Bootstrap(backend, cfg.Database.DSN, time.Now)
	if err != nil {
		return fmt.Errorf("conduit: bootstrap edge store: %w", err)
	}
	defer closeEdges()
	_ = edgeStore // exercised by recall/procedural callers wired outside this thin binary

	orch := orchestrator.New(orchestrator.Config{
		RewardWeights: orchestrator.RewardWeights{
			Success: cfg.RewardWeights.Success,
			Time:    cfg.RewardWeights.Time,
			Cost:    cfg.RewardWeights.Cost,
		},
		Ban: orchestrator.BanConfig{
			MinTasks:         cfg.BanMinTasks,
			FailureThreshold: cfg.BanFailureThreshold,
			BanDuration:      time.Duration(cfg.BanDurationMs) * time.Millisecond,
		},
		BanditMode:       bandit.Mode(cfg.BanditMode),
		AutosaveInterval: cfg.AutosaveInterval,
	}, demoSlots(c.Slots), time.Now)

	slog.Info("conduit: core ready", "slots", c.Slots, "bandit_mode", cfg.BanditMode, "database", backend)
	<-ctx.Done()
	slog.Info("conduit: stopped", "pending_tasks", len(orch.Snapshot().PendingTasks))
	return nil
}

func demoSlots(n int) []*orchestrator.Slot {
	if n < 1 {
		n = 1
	}
	slots := make([]*orchestrator.Slot, n)
	for i := range slots {
		slots[i] = &orchestrator.Slot{ID: fmt.Sprintf("slot-%d", i)}
	}
	return slots
}

func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		return cfg, nil, nil
	}
	return config.LoadConfigFile(ctx, path)
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("conduit"),
		kong.Description("Conduit orchestration core"),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	switch cli.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	err := kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
