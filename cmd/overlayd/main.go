package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/polyglot-overlay/internal/config"
)

var rootCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "overlayd",
		Short: "Polyglot overlay - AI text assistant behind a global shortcut",
		Long: `overlayd runs the overlay core: a global shortcut toggles the overlay,
selected text is proofread, rewritten or expanded through OpenRouter, and the
UI shell drives everything through a loopback command API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to config file")

	rootCmd.AddCommand(
		newServeCmd(),
		newCompleteCmd(),
		newModelsCmd(),
		newShortcutCmd(),
		newAutostartCmd(),
	)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
