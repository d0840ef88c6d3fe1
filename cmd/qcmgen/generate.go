package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-qcm/internal/app"
	"github.com/p-n-ai/pai-qcm/internal/export"
	"github.com/p-n-ai/pai-qcm/internal/pipeline"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Generate QCMs from French text",
	Long: "Generate QCMs from the text given as arguments or read with --file.\n" +
		"Use --llm to ask the configured AI provider instead of the parser.",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		useLLM, _ := cmd.Flags().GetBool("llm")
		illustrated, _ := cmd.Flags().GetBool("illustrated")
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		title, _ := cmd.Flags().GetString("title")
		save, _ := cmd.Flags().GetBool("save")

		text, err := readInput(cmd, args, file)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("no text given")
		}
		if format == "xlsx" && out == "" {
			return fmt.Errorf("--format xlsx needs --out")
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		mode := "nlp"
		var qcms []qcm.QCM
		if useLLM {
			if a.Producer == nil {
				return fmt.Errorf("no AI provider configured")
			}
			mode = "llm"
			qcms, _, err = a.Producer.Generate(ctx, text)
		} else {
			qcms, err = a.Pipeline.Generate(ctx, text)
		}
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}

		opts := pipeline.Options{RequirePictos: a.Config.Generation.RequirePictos}
		if cmd.Flags().Changed("require-pictos") {
			opts.RequirePictos, _ = cmd.Flags().GetBool("require-pictos")
		}

		items := make([]worksheet.Item, 0, len(qcms))
		if illustrated || format == "xlsx" || save {
			ils, err := a.Pipeline.Illustrate(ctx, qcms, opts)
			if err != nil {
				return fmt.Errorf("illustrate: %w", err)
			}
			for _, il := range ils {
				items = append(items, worksheet.Item{QCM: il.QCM, ImageURLs: il.ImageURLs()})
			}
		} else {
			for _, q := range qcms {
				items = append(items, worksheet.Item{QCM: q})
			}
		}

		if title == "" {
			title = firstWords(text, 6)
		}
		ws := worksheet.Worksheet{Title: title, Source: text, Mode: mode, Items: items}

		if save {
			id, err := saveWorksheet(cmd, a, ws)
			if err != nil {
				return err
			}
			ws.ID = id
			fmt.Fprintln(cmd.ErrOrStderr(), "saved worksheet", id)
		}

		return writeWorksheet(cmd.OutOrStdout(), ws, format, out)
	},
}

func init() {
	generateCmd.Flags().StringP("file", "f", "", "Read text from a file (- for stdin)")
	generateCmd.Flags().Bool("llm", false, "Generate with the AI provider")
	generateCmd.Flags().Bool("illustrated", false, "Resolve a pictogram for every choice")
	generateCmd.Flags().Bool("require-pictos", true, "Drop questions with an unillustrated choice")
	generateCmd.Flags().String("format", "text", "Output format: text, json or xlsx")
	generateCmd.Flags().StringP("out", "o", "", "Write output to a file")
	generateCmd.Flags().String("title", "", "Worksheet title")
	generateCmd.Flags().Bool("save", false, "Save the result as a worksheet")
}

func saveWorksheet(cmd *cobra.Command, a *app.App, ws worksheet.Worksheet) (string, error) {
	if err := ws.Validate(); err != nil {
		return "", fmt.Errorf("cannot save: %w", err)
	}
	id, err := a.Worksheets.Create(cmd.Context(), ws)
	if err != nil {
		return "", fmt.Errorf("save worksheet: %w", err)
	}
	if err := a.Events.LogEvent(worksheet.Event{
		WorksheetID: id,
		EventType:   worksheet.EventWorksheetSaved,
		Data:        map[string]any{"items": len(ws.Items), "mode": ws.Mode, "source": "cli"},
	}); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: event not logged:", err)
	}
	return id, nil
}

// writeWorksheet writes ws to path, or to stdout when path is empty.
func writeWorksheet(stdout io.Writer, ws worksheet.Worksheet, format, path string) error {
	if path == "" {
		return encodeWorksheet(stdout, ws, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := encodeWorksheet(f, ws, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func encodeWorksheet(w io.Writer, ws worksheet.Worksheet, format string) error {
	switch format {
	case "text":
		printText(w, ws)
		return nil
	case "json":
		return export.WriteJSON(w, ws)
	case "xlsx":
		return export.WriteXLSX(w, ws)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printText(w io.Writer, ws worksheet.Worksheet) {
	if len(ws.Items) == 0 {
		fmt.Fprintln(w, "No questions.")
		return
	}
	for i, it := range ws.Items {
		fmt.Fprintf(w, "%d. %s\n", i+1, it.QCM.Question)
		for j, c := range it.QCM.Choices {
			mark := " "
			if j == it.QCM.AnswerIndex {
				mark = "*"
			}
			line := fmt.Sprintf("   %s %s", mark, c)
			if j < len(it.ImageURLs) && it.ImageURLs[j] != "" {
				line += "  " + it.ImageURLs[j]
			}
			fmt.Fprintln(w, line)
		}
	}
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,;:!?")
}
