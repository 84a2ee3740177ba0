// Command boardctl drives a sprint board from the terminal: it stores the
// API token, lists sprints and the backlog, moves tasks and follows a
// sprint's live updates.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.err.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Sprint board client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	g.bind(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(loginCmd(g))
	rootCmd.AddCommand(logoutCmd(g))
	rootCmd.AddCommand(statusCmd(g))
	rootCmd.AddCommand(sprintsCmd(g))
	rootCmd.AddCommand(backlogCmd(g))
	rootCmd.AddCommand(moveCmd(g))
	rootCmd.AddCommand(watchCmd(g))
	rootCmd.AddCommand(relayTokenCmd(g))

	return rootCmd
}
