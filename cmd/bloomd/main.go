package main

import (
	"fmt"
	"os"

	"github.com/oriys/bloomd/internal/filtmgr"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bloomd",
		Short: "bloomd filter manager daemon and CLI",
		Long:  "Run the bloomd filter manager as a daemon, or operate on its data directory directly",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Path to the filter data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(dropCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(unmapCmd())
	rootCmd.AddCommand(flushCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(listColdCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(setCmd())

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor translates a filter manager error into a shell-friendly
// process exit status, preserving the distinction bloomd's {0,-1,-2}
// return-code surface makes between an expected condition (not found,
// already exists: exit 1) and an internal error or precondition
// violation, such as clearing a resident filter (exit 2).
func exitCodeFor(err error) int {
	if filtmgr.Code(err) == -1 {
		return 1
	}
	return 2
}
