package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-qcm/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <worksheet-id>",
	Short: "Export a saved worksheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ws, err := a.Worksheets.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if out == "" && format == "xlsx" {
			out = export.Filename(*ws, format)
		}
		if err := writeWorksheet(cmd.OutOrStdout(), *ws, format, out); err != nil {
			return err
		}
		if out != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "wrote", out)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "xlsx", "Output format: xlsx, json or text")
	exportCmd.Flags().StringP("out", "o", "", "Output file")
}
