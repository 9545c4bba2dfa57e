package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"clawdia/internal/research"
	"clawdia/pkg/progress"

	"github.com/spf13/cobra"
)

var researchCriteria []string

var researchCmd = &cobra.Command{
	Use:   "research <prompt>",
	Short: "Run one research execution and print the summary",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResearch(strings.Join(args, " "))
	},
}

func init() {
	researchCmd.Flags().StringArrayVar(&researchCriteria, "criterion", nil,
		"success criterion (repeatable; overrides derived criteria)")
}

func runResearch(prompt string) error {
	cfg, dd, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, dd)
	if err != nil {
		return err
	}
	defer a.close()

	spec := a.planSpec(researchRequest{Prompt: prompt, Criteria: researchCriteria})
	fmt.Printf("Domain: %s, %d planned actions\n", spec.Domain, len(spec.PlannedActions))

	executor := research.NewExecutor(a.pool, a.store,
		progress.MultiSink{a.broadcaster, consoleSink()})
	summary := executor.Execute(context.Background(), spec)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
