package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	verbose    bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "einvoice-hub",
	Short: "Middleware hub between merchants and Vietnam e-invoice providers",
	Long: `E-Invoice Hub accepts invoices in one canonical format and delivers
them to the merchant's configured e-invoice provider.

Supports:
  - Providers: VNPT, Viettel, MISA, FPT
  - Asynchronous delivery with retry and status polling
  - Cancellation and replacement of issued invoices

Examples:
  # Start the hub with a provider configuration file
  einvoice-hub serve --config providers.json

  # List the registered providers and their capabilities
  einvoice-hub providers`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Provider configuration file (env: EINVOICE_HUB_CONFIG)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if configFile == "" {
		configFile = os.Getenv("EINVOICE_HUB_CONFIG")
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
