// fraudctl — операторский CLI шлюза оценки фрода.
//
// Usage:
//
//	fraudctl validate [--config=<path>]
//	fraudctl score -f <record.json> [--config=<path>]
//	fraudctl publish --agent=<transaction|behavior> --model=<path> --schema=<path> [--notify]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xela07ax/fraudfusion/internal/infra"
)

// version задается при сборке через -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fraudctl",
	Short: "Operator CLI for the fraud scoring gateway",
	Long:  "fraudctl validates and publishes agent artifacts and scores\nrecords offline through the same pipeline as the gateway.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./config.yaml or ./configs/config.yaml)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.Version = version
}

func loadConfig() (*infra.Config, error) {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
