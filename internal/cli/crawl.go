package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/pagegraph-crawl/internal/app"
	"github.com/law-makers/pagegraph-crawl/internal/config"
	"github.com/law-makers/pagegraph-crawl/internal/input"
	"github.com/law-makers/pagegraph-crawl/internal/scheduler"
	"github.com/law-makers/pagegraph-crawl/internal/site"
	"github.com/law-makers/pagegraph-crawl/internal/ui"
	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <urls.json>",
	Short: "Crawl every site of a URL file",
	Long: `Crawl reads an ordered JSON object mapping site keys to candidate URLs.
The file name selects the category (global, country_specific or
country_coded). Sites already present under the snapshot directory and
sites listed in the exclusion file are skipped.`,
	Example: `  # Crawl the global list for Germany with four workers
  pagegraph-crawl crawl data/global_urls.json --country DE --max-cores 4

  # Store traffic archives and screenshots
  pagegraph-crawl crawl data/country_specific_urls.json --country US --har --screenshots`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	config.RegisterCrawlFlags(crawlCmd)
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	cfg := a.Config
	if err := cfg.RequireCountry(); err != nil {
		return err
	}

	path := args[0]
	category, err := input.CategoryFromFileName(path)
	if err != nil {
		return err
	}
	tasks, err := input.LoadTasks(path)
	if err != nil {
		return err
	}
	exclude := map[string]struct{}{}
	if cfg.ExcludeFile != "" {
		if exclude, err = input.LoadExclusions(cfg.ExcludeFile, *a.Logger); err != nil {
			return err
		}
	}

	layout := a.Layout(category)
	kept, excluded, treated := input.Filter(tasks, exclude, layout.Exists)
	a.Logger.Info().
		Str("category", category).
		Str("country", cfg.Country).
		Int("sites", len(tasks)).
		Int("excluded", excluded).
		Int("treated", treated).
		Int("remaining", len(kept)).
		Msg("Loaded crawl list")

	if len(kept) == 0 {
		fmt.Println(ui.Info("Nothing left to crawl."))
		return nil
	}

	if err := a.TrustProxyCA(cmd.Context()); err != nil {
		return err
	}

	return runScheduler(cmd, a, category, kept, true, func(o *site.Orchestrator) scheduler.SiteCrawler { return o })
}

// runScheduler runs tasks with a progress bar and writes the merged
// results file when at least one site was processed.
func runScheduler(cmd *cobra.Command, a *app.Application, category string, tasks []models.CrawlTask, skipExisting bool, crawl func(*site.Orchestrator) scheduler.SiteCrawler) error {
	bar := progressbar.NewOptions(len(tasks),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(category),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)

	var mu sync.Mutex
	failed := 0
	onDone := func(_ string, res *models.SiteResult) {
		mu.Lock()
		if res != nil && res.Error != "" {
			failed++
		}
		mu.Unlock()
		_ = bar.Add(1)
	}

	s := a.Scheduler(category, skipExisting, crawl, onDone)
	a.Logger.Info().Int("workers", s.Workers()).Int("sites", len(tasks)).Msg("Starting workers")

	results, runErr := s.Run(cmd.Context(), tasks)
	_ = bar.Finish()

	processed := 0
	for _, r := range results {
		if r.Worker >= 0 {
			processed++
		}
	}
	if processed > 0 {
		path, err := a.WriteResults(category, results)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", ui.Bold("Results:"), path)
	}

	fmt.Printf("%s %d processed, %d failed, %d not processed\n",
		ui.Success("Done."), processed, failed, len(results)-processed)
	return runErr
}
