package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clawdia/internal/pagecache"

	"github.com/spf13/cobra"
)

var (
	pruneAge     time.Duration
	sectionChars int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the page cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show page cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *pagecache.Store) error {
			stats, err := store.GetStats()
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a cached page by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *pagecache.Store) error {
			page, err := store.GetPage(args[0])
			if err != nil {
				return err
			}
			ref, err := store.Reference(args[0])
			if err != nil {
				return err
			}
			fmt.Println(ref)
			fmt.Println(page.Content)
			return nil
		})
	},
}

var cacheSectionCmd = &cobra.Command{
	Use:   "section <id> <keyword>",
	Short: "Print the page section around a keyword",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *pagecache.Store) error {
			section, err := store.GetPageSection(args[0], args[1], sectionChars)
			if err != nil {
				return err
			}
			fmt.Println(section)
			return nil
		})
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete pages and searches older than the cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *pagecache.Store) error {
			pruned, err := store.PruneOlderThan(pruneAge)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d rows older than %s\n", pruned, pruneAge)
			return store.Vacuum()
		})
	},
}

var cacheSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over cached page bodies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *pagecache.Store) error {
			results, err := store.SearchPages(args[0], 10)
			if err != nil {
				return err
			}
			return printJSON(results)
		})
	},
}

func init() {
	cachePruneCmd.Flags().DurationVar(&pruneAge, "age", pagecache.DefaultPruneAge, "age cutoff")
	cacheSectionCmd.Flags().IntVar(&sectionChars, "chars", 0, "section size (default from config)")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheSectionCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheSearchCmd)
}

// withStore opens just the page cache for cache subcommands; the browser
// pool and search engine stay down.
func withStore(fn func(*pagecache.Store) error) error {
	cfg, dd, err := loadConfig()
	if err != nil {
		return err
	}

	pcCfg := cfg.PageCache
	if pcCfg.Path == "" {
		pcCfg.Path = filepath.Join(dd.DatabaseDir(), "search-cache.db")
	}
	store := pagecache.Open(pcCfg)
	defer store.Close()

	if !store.Available() {
		return fmt.Errorf("page cache unavailable at %s", pcCfg.Path)
	}
	return fn(store)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
