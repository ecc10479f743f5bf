package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/einvoice-hub/internal/lifecycle"
	"github.com/rezonia/einvoice-hub/internal/provider"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
	"github.com/rezonia/einvoice-hub/internal/queue"
	"github.com/rezonia/einvoice-hub/internal/server"
	"github.com/rezonia/einvoice-hub/internal/store"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxAttempts  int
	pollInterval time.Duration
	workers      int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and delivery scheduler",
	Long: `Start the hub: the HTTP API for merchants plus the background
scheduler that delivers queued invoices to the providers.

The API provides endpoints for:
  - POST /api/v1/invoices                   - Submit an invoice
  - GET  /api/v1/invoices/:id               - Invoice status and queue state
  - GET  /api/v1/invoices/:id/transactions  - Provider attempt ledger
  - POST /api/v1/invoices/:id/cancel        - Cancel an invoice
  - POST /api/v1/invoices/:id/replace       - Replace an issued invoice
  - GET  /api/v1/invoices/:id/document      - Fetch the issued document
  - GET  /api/v1/providers                  - Registered providers
  - GET  /health                            - Health check

Examples:
  # Start on the default port
  einvoice-hub serve --config providers.json

  # Start on a custom port in debug mode
  einvoice-hub serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", time.Minute, "HTTP write timeout")
	serveCmd.Flags().IntVar(&maxAttempts, "max-attempts", 5, "Delivery attempts before an invoice fails")
	serveCmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Delivery queue poll interval")
	serveCmd.Flags().IntVar(&workers, "workers", 8, "Concurrent delivery workers")
}

func runServe(cmd *cobra.Command, args []string) error {
	mem := store.NewMemory()
	if configFile != "" {
		n, err := loadProviderConfigs(mem, configFile)
		if err != nil {
			return fmt.Errorf("load provider configs: %w", err)
		}
		printVerbose("Loaded %d provider configurations from %s\n", n, configFile)
	}

	tokens := token.NewCache()
	registry, err := provider.NewRegistry(tokens)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}

	controller := lifecycle.NewController(mem, mem, mem, mem, registry,
		lifecycle.WithMaxAttempts(maxAttempts),
	)
	scheduler := queue.NewScheduler(mem, controller,
		queue.WithPollInterval(pollInterval),
		queue.WithWorkers(workers),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	srv := server.NewServer(&server.Config{
		Address:      serverAddr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}, controller, registry)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		cancel()
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverAddr)
	fmt.Printf("Registered providers: %v\n", registry.Codes())

	return srv.Run()
}

// loadProviderConfigs seeds the store from a JSON file holding an array of
// per-(merchant, provider) configurations.
func loadProviderConfigs(configs store.ProviderConfigStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var list []*provider.Config
	if err := json.Unmarshal(data, &list); err != nil {
		return 0, err
	}
	for _, cfg := range list {
		if err := configs.PutProviderConfig(context.Background(), cfg); err != nil {
			return 0, err
		}
	}
	return len(list), nil
}
