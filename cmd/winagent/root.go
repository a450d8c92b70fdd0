package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winagent/internal/version"
)

// newRootCmd builds the agent's command line: four positional pipe/size
// arguments per spec.md §6, plus --config and the --show-input debug mode.
func newRootCmd() *cobra.Command {
	var configPath string
	var showInput bool
	var withMouse bool

	cmd := &cobra.Command{
		Use:           "winagent <control-pipe> <data-pipe> <cols> <rows>",
		Short:         "Hidden-console scraping agent",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showInput {
				return runShowInput(withMouse)
			}
			if len(args) != 4 {
				return fmt.Errorf("expected 4 positional arguments (control-pipe data-pipe cols rows), got %d", len(args))
			}
			return runAgent(args, configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to an optional YAML tuning file")
	cmd.Flags().BoolVar(&showInput, "show-input", false, "dump decoded console input records to stdout until Ctrl-D (debug only)")
	cmd.Flags().BoolVar(&withMouse, "with-mouse", false, "enable mouse report decoding in --show-input")

	cmd.Version = version.DisplayVersion()
	cmd.SetVersionTemplate("{{.Version}}\n")

	return cmd
}
