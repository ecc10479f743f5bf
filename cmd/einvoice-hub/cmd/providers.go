package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/einvoice-hub/internal/provider"
	"github.com/rezonia/einvoice-hub/internal/provider/token"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered e-invoice providers",
	Long: `List every provider the hub can deliver to, with the operations
each one offers and the native status codes it reports.`,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	registry, err := provider.NewRegistry(token.NewCache())
	if err != nil {
		return err
	}

	for _, code := range registry.Codes() {
		adapter, err := registry.Resolve(code)
		if err != nil {
			return err
		}
		var caps []string
		for _, cap := range adapter.Capabilities().List() {
			caps = append(caps, string(cap))
		}
		fmt.Printf("%-10s capabilities: %s\n", code, strings.Join(caps, ", "))
		if verbose {
			fmt.Printf("%-10s status codes: %s\n", "", strings.Join(adapter.Translator().Codes(), ", "))
		}
	}
	return nil
}
