// Package cli implements the lvot command-line interface.
//
// The CLI runs transport solves on seeded synthetic point clouds so solver
// settings can be tried without a dataset, and manages the TOML/YAML files
// that hold those settings.
//
// # Commands
//
//   - solve: generate two clouds, solve and print a report
//   - config init: write a default configuration file
//   - version: print the build version
//
// # Logging
//
// Solver records go to the CLI logger; --verbose (-v) adds the per-check
// debug records of the iterative backends.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const appName = "lvot"

// Version is the build version, injected via ldflags.
var Version = "dev"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a CLI whose logger writes to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "lvot solves optimal-transport problems between cell populations",
		Long:         `lvot runs linear, Gromov-Wasserstein and fused Gromov-Wasserstein solvers, in full or low rank, and reports the resulting couplings.`,
		Version:      Version,
		SilenceUsage: true,
	}

	root.AddCommand(c.solveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.versionCommand())

	return root
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), appName+" "+Version+"\n")
			return err
		},
	}
}
