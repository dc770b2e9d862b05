package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/app"
	"github.com/law-makers/catalog/internal/config"
	"github.com/law-makers/catalog/internal/ui"
)

const version = "0.1.0"

// NewRootCmd builds the catalog command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalog",
		Short: "A cache-aside catalog of World of Books products",
		Long: `Catalog serves World of Books categories and products from a local store,
scraping the site on demand when data is missing or older than its freshness window.

Run "catalog serve" for the HTTP API or use the other commands directly.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	// Register centralized flags
	config.RegisterFlags(root)
	root.PersistentFlags().StringP("output", "o", "", "Export results to a file (supports .json, .csv)")

	// Customize help and version flag descriptions
	root.Flags().BoolP("help", "h", false, "Help for Catalog")
	root.Flags().Bool("version", false, "Version for Catalog")

	// Disable the default completion command
	root.CompletionOptions.DisableDefaultCmd = true

	// Set custom help function
	root.SetHelpFunc(customHelpFunc)
	root.SetUsageFunc(customUsageFunc)

	root.AddCommand(
		newServeCmd(),
		newCategoriesCmd(),
		newCategoryCmd(),
		newProductCmd(),
		newSearchCmd(),
		newScrapeCmd(),
		newJobsCmd(),
		newHealthCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code. This is called by
// main.main(). The application is closed after the command finishes, whether
// or not it succeeded.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)

	if e := envFrom(root); e != nil && e.close != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = e.close(closeCtx)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: ")+err.Error())
		return 1
	}
	return 0
}

// setup initializes the application lazily, so -h and --version never start
// it. A pre-populated env is kept.
func setup(cmd *cobra.Command, args []string) error {
	if envFrom(cmd) != nil || cmd.Name() == "help" {
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

	ctx := withEnv(cmd.Context(), &env{
		cfg:        cfg,
		catalog:    a.Catalog,
		close:      a.Close,
		cacheStats: a.PageCache.Stats,
	})
	cmd.SetContext(ctx)
	// The root keeps the env too so Execute can close it after failures.
	cmd.Root().SetContext(ctx)
	return nil
}

// customHelpFunc provides a colorized help output
func customHelpFunc(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()
	// Header with command name
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorBold+ui.ColorCyan, strings.ToUpper(cmd.Name()), ui.ColorReset)

	// Short description
	if cmd.Short != "" {
		fmt.Fprintf(w, "%s\n", cmd.Short)
	}

	// Long description
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", wrapText(cmd.Long, 80))
	}

	// Usage section
	fmt.Fprintf(w, "\n%sUsage%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s%s%s\n", ui.ColorCyan, cmd.UseLine(), ui.ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s%s%s %s<command>%s %s[flags]%s\n",
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset,
			ui.ColorYellow, ui.ColorReset,
			ui.ColorDim, ui.ColorReset)
	}

	// Examples section
	if cmd.HasExample() {
		fmt.Fprintf(w, "\n%sExamples%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
		examples := strings.Split(cmd.Example, "\n")
		lastWasCommand := false
		for _, example := range examples {
			trimmed := strings.TrimSpace(example)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, "#") {
				// Add spacing before comment if previous line was a command
				if lastWasCommand {
					fmt.Fprintln(w)
				}
				// Comment line
				fmt.Fprintf(w, "  %s%s%s\n", ui.ColorDim, trimmed, ui.ColorReset)
				lastWasCommand = false
			} else {
				// Command line
				fmt.Fprintf(w, "  %s$ %s%s\n", ui.ColorGreen, trimmed, ui.ColorReset)
			}
		}
	}

	// Available commands section
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%sCommands%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)

		maxLen := 0
		availableCommands := []*cobra.Command{}
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && c.Name() != "help" {
				availableCommands = append(availableCommands, c)
				if len(c.Name()) > maxLen {
					maxLen = len(c.Name())
				}
			}
		}

		for _, c := range availableCommands {
			padding := strings.Repeat(" ", maxLen-len(c.Name())+2)
			fmt.Fprintf(w, "  %s%s%s%s%s%s%s\n",
				ui.ColorCyan, c.Name(), ui.ColorReset,
				padding,
				ui.ColorDim, c.Short, ui.ColorReset)
		}
	}

	// Flags sections
	hasLocalFlags := cmd.HasAvailableLocalFlags()
	hasInheritedFlags := cmd.HasAvailableInheritedFlags()

	if hasLocalFlags {
		fmt.Fprintf(w, "\n%sFlags%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
		printFlagsTo(w, cmd.LocalFlags().FlagUsages())
	}

	if hasInheritedFlags {
		fmt.Fprintf(w, "\n%sGlobal Flags%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
		printFlagsTo(w, cmd.InheritedFlags().FlagUsages())
	}

	// Footer
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%sUse \"%s%s%s %s<command>%s %s--help%s\" for more information about a command.%s\n",
			ui.ColorDim,
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset+ui.ColorDim,
			ui.ColorYellow, ui.ColorReset+ui.ColorDim,
			ui.ColorGreen, ui.ColorReset+ui.ColorDim,
			ui.ColorReset)
	}
	fmt.Fprintln(w)
}

// customUsageFunc provides a colorized usage output
func customUsageFunc(cmd *cobra.Command) error {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "\n%sUsage%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s%s%s\n", ui.ColorCyan, cmd.UseLine(), ui.ColorReset)
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s%s%s %s<command>%s %s[flags]%s\n",
			ui.ColorCyan, cmd.CommandPath(), ui.ColorReset,
			ui.ColorYellow, ui.ColorReset,
			ui.ColorDim, ui.ColorReset)
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%sCommands%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)

		maxLen := 0
		availableCommands := []*cobra.Command{}
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() && c.Name() != "help" {
				availableCommands = append(availableCommands, c)
				if len(c.Name()) > maxLen {
					maxLen = len(c.Name())
				}
			}
		}

		for _, c := range availableCommands {
			padding := strings.Repeat(" ", maxLen-len(c.Name())+2)
			fmt.Fprintf(w, "  %s%s%s%s%s%s%s\n",
				ui.ColorCyan, c.Name(), ui.ColorReset,
				padding,
				ui.ColorDim, c.Short, ui.ColorReset)
		}
	}

	if cmd.HasAvailableLocalFlags() {
		fmt.Fprintf(w, "\n%sFlags%s\n", ui.ColorBold+ui.ColorWhite, ui.ColorReset)
		printFlagsTo(w, cmd.LocalFlags().FlagUsages())
	}

	fmt.Fprintf(w, "\n%sUse \"%s%s%s %s--help%s\" for more information.%s\n",
		ui.ColorDim,
		ui.ColorCyan, cmd.CommandPath(), ui.ColorReset+ui.ColorDim,
		ui.ColorGreen, ui.ColorReset+ui.ColorDim,
		ui.ColorReset)

	return nil
}

// printFlagsTo prints flag usages with color formatting to the specified writer
func printFlagsTo(writer io.Writer, flagUsages string) {
	lines := strings.Split(flagUsages, "\n")

	// Find maximum flag length for alignment
	maxFlagLen := 0
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "-") {
			parts := strings.SplitN(trimmed, "  ", 2)
			if len(parts) >= 1 {
				flagPart := strings.TrimSpace(parts[0])
				if len(flagPart) > maxFlagLen {
					maxFlagLen = len(flagPart)
				}
			}
		}
	}

	// Set minimum width for alignment
	if maxFlagLen < 28 {
		maxFlagLen = 28
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		trimmed := strings.TrimLeft(line, " ")

		// Check if this is a flag definition line or a continuation
		if strings.HasPrefix(trimmed, "-") {
			parts := strings.SplitN(trimmed, "  ", 2)
			if len(parts) == 2 {
				flagPart := strings.TrimSpace(parts[0])
				descPart := strings.TrimSpace(parts[1])

				padding := strings.Repeat(" ", maxFlagLen-len(flagPart)+2)

				fmt.Fprintf(writer, "  %s%s%s%s%s%s%s\n",
					ui.ColorGreen, flagPart, ui.ColorReset,
					padding,
					ui.ColorDim, descPart, ui.ColorReset)
			} else {
				fmt.Fprintf(writer, "  %s%s%s\n", ui.ColorGreen, trimmed, ui.ColorReset)
			}
		} else {
			// Continuation line (description continues)
			indentSpaces := strings.Repeat(" ", maxFlagLen+4)
			fmt.Fprintf(writer, "%s%s%s%s\n",
				indentSpaces,
				ui.ColorDim, trimmed, ui.ColorReset)
		}
	}
}

// wrapText wraps text at the specified width while preserving paragraphs
func wrapText(text string, width int) string {
	// Split by double newlines to preserve paragraphs
	paragraphs := strings.Split(text, "\n\n")
	var wrappedParagraphs []string

	for _, para := range paragraphs {
		// Split by single newlines to preserve intentional line breaks
		lines := strings.Split(para, "\n")
		var wrappedLines []string

		for _, line := range lines {
			trimmedLine := strings.TrimSpace(line)
			if trimmedLine == "" {
				continue
			}

			// Check if this is a bullet point or list item
			if strings.HasPrefix(trimmedLine, "-") || strings.HasPrefix(trimmedLine, "•") || strings.HasPrefix(trimmedLine, "*") {
				// Don't wrap bullet points with previous content
				wrappedLines = append(wrappedLines, trimmedLine)
				continue
			}

			// Wrap regular lines
			words := strings.Fields(trimmedLine)
			if len(words) == 0 {
				continue
			}

			var currentLine strings.Builder
			for _, word := range words {
				if currentLine.Len() == 0 {
					currentLine.WriteString(word)
				} else if currentLine.Len()+1+len(word) <= width {
					currentLine.WriteString(" ")
					currentLine.WriteString(word)
				} else {
					wrappedLines = append(wrappedLines, currentLine.String())
					currentLine.Reset()
					currentLine.WriteString(word)
				}
			}

			if currentLine.Len() > 0 {
				wrappedLines = append(wrappedLines, currentLine.String())
			}
		}

		if len(wrappedLines) > 0 {
			wrappedParagraphs = append(wrappedParagraphs, strings.Join(wrappedLines, "\n"))
		}
	}

	return strings.Join(wrappedParagraphs, "\n\n")
}
