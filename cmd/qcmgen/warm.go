package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-qcm/internal/app"
)

var warmCacheCmd = &cobra.Command{
	Use:   "warm-cache",
	Short: "Fill the pictogram cache ahead of use",
	Long: "Resolve a list of terms (the question-template pools by default) and,\n" +
		"with --categories, strict-resolve every category word not cached yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, _ := cmd.Flags().GetBool("categories")
		delay, _ := cmd.Flags().GetDuration("delay")
		termsFile, _ := cmd.Flags().GetString("terms")

		opts := app.WarmOptions{Terms: args, Categories: categories, Delay: delay}
		if termsFile != "" {
			b, err := os.ReadFile(termsFile)
			if err != nil {
				return fmt.Errorf("read terms: %w", err)
			}
			for _, line := range strings.Split(string(b), "\n") {
				if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
					opts.Terms = append(opts.Terms, line)
				}
			}
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.WarmCache(ctx, opts)
		if err != nil {
			return fmt.Errorf("warm cache: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "resolved %d, skipped %d, missing %d\n", report.Resolved, report.Skipped, len(report.Missing))
		for _, m := range report.Missing {
			fmt.Fprintln(out, "  missing:", m)
		}
		return nil
	},
}

func init() {
	warmCacheCmd.Flags().Bool("categories", false, "Also strict-resolve every category pool word")
	warmCacheCmd.Flags().Duration("delay", 200*time.Millisecond, "Pause between catalog lookups")
	warmCacheCmd.Flags().String("terms", "", "File with one term per line")
}
