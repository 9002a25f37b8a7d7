package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nowcast-run/agent/internal/artwork"
	"github.com/nowcast-run/agent/internal/config"
	"github.com/nowcast-run/agent/internal/logging"
	"github.com/nowcast-run/agent/internal/media"
	"github.com/nowcast-run/agent/internal/orchestrator"
	"github.com/nowcast-run/agent/internal/presence"
	"github.com/nowcast-run/agent/internal/secmem"
)

var version = "0.1.0"

var cfgFile string

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "nowcast-agentd",
	Short: "nowcast agent",
	Long:  "nowcast-agentd mirrors the operating system's now-playing media onto a local rich-presence client.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nowcast-agentd v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show presence slot statuses and the artwork tunnel URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current now-playing snapshot and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGet()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream now-playing changes to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is platform-specific, see internal/config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	logFileFallback := false

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
			logFileFallback = true
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")

	if logFileFallback {
		log.Warn("log file fallback active, logging to stdout only", "requestedFile", cfg.LogFile)
	}
}

// buildOrchestrator assembles the artwork store/server/tunnel, the
// presence pool, and the platform media source described by cfg, and
// wires them into an orchestrator.Orchestrator. Callers run it and
// must arrange for secureSecret.Zero() to run on their own shutdown
// path.
func buildOrchestrator(cfg *config.Config, secureSecret *secmem.SecureString) (*orchestrator.Orchestrator, error) {
	source, err := newMediaSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("media source: %w", err)
	}

	store := artwork.NewStore()
	server, err := artwork.NewServer(cfg.ArtworkBindHost, store)
	if err != nil {
		return nil, fmt.Errorf("artwork server: %w", err)
	}

	var tunnel artwork.Tunnel
	switch cfg.TunnelMode {
	case "managed":
		tunnel = artwork.NewManagedTunnel("")
	default:
		tunnel = artwork.NewCloudflaredTunnel(cfg.CloudflaredPath)
	}

	tokenStore := presence.NewFileTokenStore(config.GetDataDir())
	pool := presence.NewPool(cfg.ClientID, secureSecret.String(), cfg.TokenURL, cfg.SlotCount, tokenStore)

	return orchestrator.New(source, store, server, tunnel, pool), nil
}

// runAgent starts the agent's run loop: media pump, artwork server and
// tunnel, and the presence pool, and blocks until a shutdown signal
// arrives.
func runAgent() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	initLogging(cfg)

	secureSecret := secmem.NewSecureString(cfg.ClientSecret)
	cfg.ClientSecret = ""
	defer secureSecret.Zero()

	log.Info("starting agent", "version", version, "slots", cfg.SlotCount, "tunnelMode", cfg.TunnelMode)

	orch, err := buildOrchestrator(cfg, secureSecret)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("agent is running")
	err = orch.Run(ctx)
	log.Info("agent stopped")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// runStatus builds a full orchestrator, gives its presence slots a
// bounded window to reach Open or Dead, and prints their statuses plus
// the artwork tunnel's public URL.
func runStatus() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogging(cfg)

	secureSecret := secmem.NewSecureString(cfg.ClientSecret)
	cfg.ClientSecret = ""
	defer secureSecret.Zero()

	orch, err := buildOrchestrator(cfg, secureSecret)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- orch.Run(ctx) }()

	time.Sleep(3 * time.Second)

	fmt.Println("Presence slots:")
	for i, st := range orch.Statuses() {
		fmt.Printf("  slot %d: %s\n", i, st)
	}

	urlCtx, urlCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if url, err := orch.TunnelURL(urlCtx); err == nil {
		fmt.Printf("Artwork tunnel: %s\n", url)
	} else {
		fmt.Println("Artwork tunnel: not ready")
	}
	urlCancel()

	cancel()
	<-runDone
	return nil
}

// runGet performs a one-shot read of the platform media source and
// prints the result.
func runGet() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogging(cfg)

	source, err := newMediaSource(cfg)
	if err != nil {
		return err
	}

	np, err := source.Get(context.Background())
	if err != nil {
		return fmt.Errorf("get media: %w", err)
	}
	printNowPlaying(np)
	return nil
}

// runWatch subscribes to the platform media source and prints each
// change until interrupted.
func runWatch() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogging(cfg)

	source, err := newMediaSource(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ch, err := source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case np, ok := <-ch:
			if !ok {
				return nil
			}
			printNowPlaying(np)
		}
	}
}

func printNowPlaying(np *media.NowPlaying) {
	if np == nil {
		fmt.Println("(nothing playing)")
		return
	}
	fmt.Printf("%s — %s\n", np.Artist, np.Title)
	fmt.Printf("  start: %s\n  end:   %s\n", np.Start.Format(time.RFC3339), np.End.Format(time.RFC3339))
	if np.ArtworkHash != "" {
		fmt.Printf("  artwork: %s (%s, %d bytes)\n", np.ArtworkHash, np.ArtworkMIME, len(np.ArtworkBytes))
	}
}
