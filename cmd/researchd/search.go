package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchNews     bool
	searchShopping bool
	searchPlaces   bool
	searchImages   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a consensus search and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchNews, "news", false, "search the news vertical")
	searchCmd.Flags().BoolVar(&searchShopping, "shopping", false, "search the shopping vertical")
	searchCmd.Flags().BoolVar(&searchPlaces, "places", false, "search the places vertical")
	searchCmd.Flags().BoolVar(&searchImages, "images", false, "search the images vertical")
}

func runSearch(query string) error {
	cfg, dd, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, dd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	switch {
	case searchNews:
		items, err := a.engine.News(ctx, query)
		if err != nil {
			return err
		}
		return encoder.Encode(items)
	case searchShopping:
		items, err := a.engine.Shopping(ctx, query)
		if err != nil {
			return err
		}
		return encoder.Encode(items)
	case searchPlaces:
		items, err := a.engine.Places(ctx, query)
		if err != nil {
			return err
		}
		return encoder.Encode(items)
	case searchImages:
		items, err := a.engine.Images(ctx, query)
		if err != nil {
			return err
		}
		return encoder.Encode(items)
	}

	result, err := a.engine.Search(ctx, query)
	if err != nil {
		return err
	}

	fmt.Printf("source: %s, confidence: %s", result.Source, result.Confidence)
	if result.ConsensusText != "" {
		fmt.Printf(", consensus: %s", result.ConsensusText)
	}
	fmt.Println()
	return encoder.Encode(result.Results())
}
