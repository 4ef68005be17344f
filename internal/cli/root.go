package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/pagegraph-crawl/internal/app"
	"github.com/law-makers/pagegraph-crawl/internal/config"
	"github.com/law-makers/pagegraph-crawl/internal/ui"
)

const shutdownTimeout = 10 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagegraph-crawl",
	Short: "Crawl sites with Brave and record their PageGraph",
	Long: `pagegraph-crawl drives PageGraph-enabled Brave instances over lists of
candidate URLs, one browser per visit, and stores a GraphML snapshot for every
page it reaches. A local proxy per worker injects a consent-dismissal script.

Each site is crawled twice: a primary pass up to the configured depth and a
validation pass over the URLs that succeeded.`,
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI with ctx and exits with status 1 on failure.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	// The application is built lazily so -h and --version never start it.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown incomplete")
		}
		SetApp(cmd, nil)
	}

	config.RegisterFlags(rootCmd)
	rootCmd.Flags().BoolP("help", "h", false, "Help for pagegraph-crawl")
	rootCmd.Flags().Bool("version", false, "Version for pagegraph-crawl")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error {
		printUsage(os.Stderr, cmd)
		return nil
	})
}

// helpFunc provides a colorized help output
func helpFunc(cmd *cobra.Command, _ []string) {
	w := os.Stdout
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorCyan, strings.ToUpper(cmd.Name()), ui.ColorReset)
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", cmd.Long)
	}

	printUsage(w, cmd)

	if cmd.HasExample() {
		section(w, "Examples")
		for _, line := range strings.Split(cmd.Example, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case strings.HasPrefix(line, "#"):
				fmt.Fprintf(w, "  %s%s%s\n", ui.ColorDim, line, ui.ColorReset)
			default:
				fmt.Fprintf(w, "  %s$ %s%s\n", ui.ColorGreen, line, ui.ColorReset)
			}
		}
	}

	if cmd.HasAvailableInheritedFlags() {
		section(w, "Global Flags")
		printFlags(w, cmd.InheritedFlags().FlagUsages())
	}
	fmt.Fprintln(w)
}

func printUsage(w io.Writer, cmd *cobra.Command) {
	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s%s%s\n", ui.ColorCyan, cmd.UseLine(), ui.ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s%s%s %s<command>%s %s[flags]%s\n",
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset,
			ui.ColorYellow, ui.ColorReset,
			ui.ColorDim, ui.ColorReset)

		section(w, "Commands")
		var cmds []*cobra.Command
		width := 0
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && c.Name() != "help" {
				cmds = append(cmds, c)
				width = max(width, len(c.Name()))
			}
		}
		for _, c := range cmds {
			fmt.Fprintf(w, "  %s%-*s%s  %s%s%s\n",
				ui.ColorCyan, width, c.Name(), ui.ColorReset,
				ui.ColorDim, c.Short, ui.ColorReset)
		}
	}
	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		printFlags(w, cmd.LocalFlags().FlagUsages())
	}
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorWhite, title, ui.ColorReset)
}

// printFlags colors pflag's usage block: names green, descriptions dim.
func printFlags(w io.Writer, usages string) {
	for _, line := range strings.Split(usages, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "-") {
			fmt.Fprintf(w, "      %s%s%s\n", ui.ColorDim, trimmed, ui.ColorReset)
			continue
		}
		name, desc, ok := strings.Cut(trimmed, "  ")
		if !ok {
			fmt.Fprintf(w, "  %s%s%s\n", ui.ColorGreen, trimmed, ui.ColorReset)
			continue
		}
		fmt.Fprintf(w, "  %s%-30s%s %s%s%s\n",
			ui.ColorGreen, strings.TrimSpace(name), ui.ColorReset,
			ui.ColorDim, strings.TrimSpace(desc), ui.ColorReset)
	}
}
