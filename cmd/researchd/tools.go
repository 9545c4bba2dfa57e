package main

import (
	"fmt"

	"clawdia/internal/fastpath"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage fast-path external tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered fast-path tools and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		for _, entry := range registry.Entries() {
			status := "missing"
			if entry.Available {
				status = "installed"
			}
			fmt.Printf("%-14s %-14s %s\n", entry.ID, entry.CheckCommand, status)
		}
		return nil
	},
}

var toolsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Re-probe every tool and report availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		registry.Refresh()

		missing := 0
		for _, entry := range registry.Entries() {
			if !entry.Available {
				missing++
				fmt.Printf("%s: command %q not found on PATH\n", entry.ID, entry.CheckCommand)
			}
		}
		if missing == 0 {
			fmt.Println("All fast-path tools available")
		}
		return nil
	},
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCheckCmd)
}

func loadRegistry() (*fastpath.Registry, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return fastpath.NewRegistry(cfg.FastPath.ExtraRegistryFile, nil)
}
