package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/pagegraph-crawl/internal/input"
	"github.com/law-makers/pagegraph-crawl/internal/scheduler"
	"github.com/law-makers/pagegraph-crawl/internal/site"
	"github.com/law-makers/pagegraph-crawl/internal/ui"
	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

var revalidateCmd = &cobra.Command{
	Use:   "revalidate <category>",
	Short: "Re-run the validation pass where it is incomplete",
	Long: `Revalidate walks the existing snapshots of a category and, for every site,
visits again the captured URLs that have no counterpart in the site's
validation directory. Each missing URL is attempted once.`,
	Example: `  # Fill the validation gaps of the global category for Germany
  pagegraph-crawl revalidate global --country DE`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{input.CategoryGlobal, input.CategoryCountrySpecific, input.CategoryCountryCoded},
	RunE:      runRevalidate,
}

func init() {
	rootCmd.AddCommand(revalidateCmd)
}

func runRevalidate(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	if err := a.Config.RequireCountry(); err != nil {
		return err
	}
	category, err := input.CategoryFromFileName(args[0])
	if err != nil {
		return err
	}
	layout := a.Layout(category)

	gaps, err := layout.MissingValidations(func(path string, err error) {
		a.Logger.Warn().Err(err).Str("file", path).Msg("Skipping unreadable graph")
	})
	if err != nil {
		return err
	}
	tasks := make([]models.CrawlTask, 0, len(gaps))
	for _, g := range gaps {
		tasks = append(tasks, models.CrawlTask{SiteKey: g.SiteKey, CandidateURLs: g.URLs})
	}
	a.Logger.Info().Str("category", category).Int("sites", len(tasks)).Msg("Sites with incomplete validation")
	if len(tasks) == 0 {
		fmt.Println(ui.Info("Every site is validated."))
		return nil
	}

	if err := a.TrustProxyCA(cmd.Context()); err != nil {
		return err
	}
	return runScheduler(cmd, a, category, tasks, false, func(o *site.Orchestrator) scheduler.SiteCrawler {
		return scheduler.SiteCrawlerFunc(o.Revalidate)
	})
}
