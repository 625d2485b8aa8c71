package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetlink/fleetlink/pkg/cache"
	"github.com/fleetlink/fleetlink/pkg/config"
	"github.com/fleetlink/fleetlink/pkg/conn"
	"github.com/fleetlink/fleetlink/pkg/log"
	"github.com/fleetlink/fleetlink/pkg/metrics"
	"github.com/fleetlink/fleetlink/pkg/uplink"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetlink",
	Short: "FleetLink - resilient fleet-status uplink agent",
	Long: `FleetLink maintains a persistent, authenticated connection to a remote
aggregation service and uploads fleet-status snapshots and voyage loot
records, buffering undeliverable payloads to disk and replaying them once
connectivity is restored.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"FleetLink version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	runCmd.Flags().StringP("config", "c", "fleetlink.yml", "Path to the configuration file")
	statusCmd.Flags().String("addr", "127.0.0.1:9290", "Address of a running agent's status endpoint")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the uplink agent",
	Long: `Run the uplink agent: connect to the configured server, authenticate,
and keep the retry cache draining. The agent reconnects automatically with
tiered backoff and shuts down cleanly on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
		logger := log.WithComponent("agent")

		retryCache := cache.New(cfg.Cache.Path)
		manager := conn.NewManager(cfg.Settings(), Version)
		coordinator := uplink.New(manager, retryCache)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var httpServer *http.Server
		if cfg.Metrics.Addr != "" {
			httpServer = serveObservability(cfg.Metrics.Addr, manager, retryCache)
		}

		logger.Info().
			Str("server", cfg.Server.URL).
			Str("version", Version).
			Msg("starting uplink agent")
		manager.Connect()
		go coordinator.Run(ctx)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")

		cancel()
		manager.Disconnect()
		if httpServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			httpServer.Shutdown(shutdownCtx)
			shutdownCancel()
		}
		if err := retryCache.Close(); err != nil {
			logger.Error().Err(err).Msg("final cache flush failed")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/status", addr))
		if err != nil {
			return fmt.Errorf("agent not reachable at %s: %w", addr, err)
		}
		defer resp.Body.Close()

		var st agentStatus
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}

		fmt.Printf("State:             %s\n", st.Connection.State)
		if st.Connection.LastError != "" {
			fmt.Printf("Last error:        %s\n", st.Connection.LastError)
		}
		if !st.Connection.NextRetryAt.IsZero() {
			fmt.Printf("Next retry:        %s (attempt %d)\n",
				st.Connection.NextRetryAt.Format(time.RFC3339), st.Connection.Attempts+1)
		}
		fmt.Printf("Pending snapshots: %d\n", st.PendingSnapshots)
		fmt.Printf("Pending loot:      %d\n", st.PendingLoot)
		return nil
	},
}

// agentStatus is the JSON document served at /status.
type agentStatus struct {
	Connection       conn.Status `json:"connection"`
	PendingSnapshots int         `json:"pendingSnapshots"`
	PendingLoot      int         `json:"pendingLoot"`
}

// serveObservability exposes /status and /metrics on the given address.
func serveObservability(addr string, manager *conn.Manager, retryCache *cache.Cache) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := agentStatus{
			Connection:       manager.Status(),
			PendingSnapshots: retryCache.PendingSnapshotCount(),
			PendingLoot:      retryCache.PendingLootCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("observability server error", err)
		}
	}()
	return srv
}
