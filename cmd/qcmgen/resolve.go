package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-qcm/internal/picto"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <term>...",
	Short: "Resolve terms to ARASAAC pictograms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")
		expected, _ := cmd.Flags().GetString("type")
		variants, _ := cmd.Flags().GetBool("variants")

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-20s  %-7s  %-6s  %-6s  %-20s  %s\n", "Term", "ID", "Score", "Mode", "Keyword", "URL")
		fmt.Fprintln(out, strings.Repeat("─", 100))

		for _, term := range args {
			var p *picto.ResolvedPicto
			switch {
			case variants:
				p, _, err = a.Resolver.ResolveVariants(ctx, term, expected)
			case strict:
				p, err = a.Resolver.ResolveStrict(ctx, term, expected)
			default:
				p, err = a.Resolver.Resolve(ctx, term)
			}
			if err != nil {
				return fmt.Errorf("resolve %q: %w", term, err)
			}
			if p == nil {
				fmt.Fprintf(out, "%-20s  %s\n", term, "not found")
				continue
			}
			fmt.Fprintf(out, "%-20s  %-7d  %-6.1f  %-6s  %-20s  %s\n",
				term, p.SymbolID, p.Score, p.Mode, p.Keyword, p.ImageURL)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().Bool("strict", false, "Only accept exact keyword matches")
	resolveCmd.Flags().String("type", "", "Expected semantic type for strict matches (e.g. color, food)")
	resolveCmd.Flags().Bool("variants", false, "Try cleaned, singular and verb-stem variants (strict)")
}
