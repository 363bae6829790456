package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/polyglot-overlay/internal/app"
	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

// cliComponents wires components for a one-shot command. Logs go to stderr
// so stdout carries only results.
func cliComponents(cmd *cobra.Command, opts componentOptions) (*components, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	return newComponents(cfg, logger, opts)
}

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Run one action on text from --text, --clipboard or stdin",
		Example: `  echo "teh quick brwn fox" | overlayd complete --action proofread
  overlayd complete --action tone --tone casual --clipboard --copy`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runComplete,
	}
	cmd.Flags().String("action", "proofread", "Action: proofread, tone or draft")
	cmd.Flags().String("tone", "", "Target tone for the tone action (default professional)")
	cmd.Flags().String("model", "", "Model id (default gateway.default_model)")
	cmd.Flags().String("api-key", "", "OpenRouter API key (default gateway.api_key)")
	cmd.Flags().Int("max-tokens", 0, "Maximum completion tokens (default 2000)")
	cmd.Flags().String("text", "", "Input text")
	cmd.Flags().Bool("clipboard", false, "Read input from the system clipboard")
	cmd.Flags().Bool("copy", false, "Write the result to the system clipboard")
	return cmd
}

func runComplete(cmd *cobra.Command, args []string) error {
	useClipboard, _ := cmd.Flags().GetBool("clipboard")
	copyResult, _ := cmd.Flags().GetBool("copy")

	c, err := cliComponents(cmd, componentOptions{
		systemClipboard: useClipboard || copyResult,
		withHistory:     true,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	text, err := completeInput(cmd, c.app, useClipboard)
	if err != nil {
		return err
	}

	action, _ := cmd.Flags().GetString("action")
	req := app.CompleteTextRequest{Text: text, Action: action}
	if cmd.Flags().Changed("tone") {
		tone, _ := cmd.Flags().GetString("tone")
		req.Tone = &tone
	}
	if cmd.Flags().Changed("model") {
		model, _ := cmd.Flags().GetString("model")
		req.Model = &model
	}
	if cmd.Flags().Changed("api-key") {
		key, _ := cmd.Flags().GetString("api-key")
		req.APIKey = &key
	}
	if cmd.Flags().Changed("max-tokens") {
		n, _ := cmd.Flags().GetInt("max-tokens")
		req.MaxTokens = &n
	}

	result, err := c.app.CompleteText(cmd.Context(), req)
	if err != nil {
		return describe(err)
	}

	if copyResult {
		if err := c.app.WriteClipboard(result); err != nil {
			return describe(err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

func completeInput(cmd *cobra.Command, a *app.App, useClipboard bool) (string, error) {
	switch {
	case cmd.Flags().Changed("text"):
		return cmd.Flags().GetString("text")
	case useClipboard:
		text, err := a.ReadClipboard()
		if err != nil {
			return "", describe(err)
		}
		return text, nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
}

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "models",
		Short:         "List models available through the gateway",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runModels,
	}
	cmd.Flags().String("api-key", "", "OpenRouter API key (default gateway.api_key)")
	cmd.Flags().Bool("json", false, "Print the raw model descriptors as JSON")
	return cmd
}

func runModels(cmd *cobra.Command, args []string) error {
	c, err := cliComponents(cmd, componentOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	var key *string
	if cmd.Flags().Changed("api-key") {
		k, _ := cmd.Flags().GetString("api-key")
		key = &k
	}

	models, err := c.app.ListModels(cmd.Context(), key)
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\n", m.ID, m.Name)
	}
	return w.Flush()
}

func newShortcutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shortcut",
		Short:         "Show or change the global shortcut",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "get",
		Short:         "Print the configured shortcut",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cliComponents(cmd, componentOptions{})
			if err != nil {
				return err
			}
			defer c.Close()
			fmt.Fprintln(cmd.OutOrStdout(), c.app.GetShortcut())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "set [accelerator]",
		Short:         "Validate and persist a new shortcut (e.g. Control+Alt+K)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cliComponents(cmd, componentOptions{})
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.app.SetShortcut(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.app.GetShortcut())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "reset",
		Short:         "Restore the default shortcut",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cliComponents(cmd, componentOptions{})
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.app.ResetShortcut(cmd.Context()); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.app.GetShortcut())
			return nil
		},
	})

	return cmd
}

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "autostart",
		Short:         "Manage starting the daemon at login",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	run := func(op func(a *app.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, err := cliComponents(cmd, componentOptions{})
			if err != nil {
				return err
			}
			defer c.Close()
			if err := op(c.app); err != nil {
				return describe(err)
			}
			enabled, err := c.app.IsAutostartEnabled()
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "autostart enabled: %t\n", enabled)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Start the daemon at login",
			Args:  cobra.NoArgs,
			RunE:  run(func(a *app.App) error { return a.EnableAutostart() }),
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop starting the daemon at login",
			Args:  cobra.NoArgs,
			RunE:  run(func(a *app.App) error { return a.DisableAutostart() }),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether the daemon starts at login",
			Args:  cobra.NoArgs,
			RunE:  run(func(*app.App) error { return nil }),
		},
	)

	return cmd
}

// describe renders classified errors as "message (kind)" for the terminal.
func describe(err error) error {
	de, ok := domain.AsError(err)
	if !ok {
		return err
	}
	return fmt.Errorf("%s (%s)", de.Message, de.Kind)
}
