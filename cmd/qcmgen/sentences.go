package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-qcm/internal/export"
	"github.com/p-n-ai/pai-qcm/internal/generative"
	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

var sentencesCmd = &cobra.Command{
	Use:   "sentences",
	Short: "Ask the AI provider for a short reading text with questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		paragraphs, _ := cmd.Flags().GetInt("paragraphs")
		complexity, _ := cmd.Flags().GetInt("complexity")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Producer == nil {
			return fmt.Errorf("no AI provider configured")
		}

		text, err := a.Producer.GenerateText(ctx, paragraphs, complexity)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return export.WriteJSON(out, worksheetFromText(a.Producer, text))
		}
		for _, p := range text.Paragraphs {
			fmt.Fprintln(out, p)
			fmt.Fprintln(out)
		}
		printText(out, worksheetFromText(a.Producer, text))
		return nil
	},
}

func init() {
	sentencesCmd.Flags().Int("paragraphs", 1, fmt.Sprintf("Number of paragraphs (1 to %d)", generative.MaxParagraphs))
	sentencesCmd.Flags().Int("complexity", 1, "Complexity from 1 (very short) to 5")
	sentencesCmd.Flags().Bool("json", false, "Print the worksheet as JSON")
}

func worksheetFromText(p *generative.Producer, text generative.Text) worksheet.Worksheet {
	qcms, _ := p.BuildQCMs(text.Items, "")
	ws := worksheet.Worksheet{Title: firstWords(firstParagraph(text), 6), Mode: "llm"}
	for _, q := range qcms {
		ws.Items = append(ws.Items, worksheet.Item{QCM: q})
	}
	return ws
}

func firstParagraph(text generative.Text) string {
	if len(text.Paragraphs) == 0 {
		return ""
	}
	return text.Paragraphs[0]
}
