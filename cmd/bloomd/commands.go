package main

import (
	"context"
	"fmt"

	"github.com/oriys/bloomd/internal/bloom"
	"github.com/oriys/bloomd/internal/config"
	"github.com/oriys/bloomd/internal/filtmgr"
	"github.com/spf13/cobra"
)

func bloomConfigFrom(cfg *config.Config) bloom.Config {
	return bloom.Config{
		Capacity: cfg.Bloom.Capacity,
		FPRate:   cfg.Bloom.FPRate,
		InMemory: cfg.Bloom.InMemory,
	}
}

// openManager loads config and opens a manager against the configured
// data directory for a single operation. Discovery runs as part of
// this, so it is only safe when no daemon already holds the directory.
func openManager() (*filtmgr.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return filtmgr.Init(cfg.Daemon.DataDir, bloomConfigFrom(cfg))
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			if err := mgr.CreateFilter(context.Background(), args[0], nil); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func dropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			if err := mgr.DropFilter(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <name>",
		Short: "Clear a proxied filter's entry, keeping its on-disk state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			if err := mgr.ClearFilter(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func unmapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmap <name>",
		Short: "Release a non-in-memory filter's resident bit arrays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			if err := mgr.UnmapFilter(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush <name>",
		Short: "Persist a filter's current state to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			if err := mgr.Flush(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			for _, name := range mgr.ListFilters() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func listColdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-cold",
		Short: "List filters untouched since the last cold listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			for _, name := range mgr.ListColdFilters() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <name> <key>...",
		Short: "Check whether keys are members of a filter",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			result, err := mgr.CheckKeys(context.Background(), args[0], stringsToKeys(args[1:]))
			if err != nil {
				return err
			}
			for i, key := range args[1:] {
				fmt.Printf("%s %d\n", key, result[i])
			}
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <key>...",
		Short: "Insert keys into a filter",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			result, err := mgr.SetKeys(context.Background(), args[0], stringsToKeys(args[1:]))
			if err != nil {
				return err
			}
			for i, key := range args[1:] {
				fmt.Printf("%s %d\n", key, result[i])
			}
			return nil
		},
	}
}

func stringsToKeys(strs []string) [][]byte {
	keys := make([][]byte, len(strs))
	for i, s := range strs {
		keys[i] = []byte(s)
	}
	return keys
}
