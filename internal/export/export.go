// Package export writes worksheets as spreadsheets or JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

// SheetName is the sheet holding the questions.
const SheetName = "QCM"

var header = []any{"#", "Contexte", "Question", "Choix", "Réponse", "Images"}

// WriteXLSX writes w as a one-sheet workbook: one row per question with
// its choices and image URLs joined by newlines.
func WriteXLSX(out io.Writer, w worksheet.Worksheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: w.Title, Creator: "pai-qcm"}); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("row style: %w", err)
	}

	for i, it := range w.Items {
		row := []any{
			i + 1,
			it.QCM.Context,
			it.QCM.Question,
			strings.Join(it.QCM.Choices, "\n"),
			it.QCM.Answer(),
			strings.Join(nonEmpty(it.ImageURLs), "\n"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
		if err := f.SetRowStyle(SheetName, i+2, i+2, wrap); err != nil {
			return fmt.Errorf("style row %d: %w", i+1, err)
		}
	}

	for col, width := range map[string]float64{"A": 5, "B": 40, "C": 40, "D": 20, "E": 15, "F": 50} {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("column %s width: %w", col, err)
		}
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteJSON writes w as indented JSON.
func WriteJSON(out io.Writer, w worksheet.Worksheet) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(w)
}

// Filename returns a download name for w with the given extension.
func Filename(w worksheet.Worksheet, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-' || r == '_':
			return '_'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return -1
	}, w.Title)
	if name == "" {
		name = "worksheet"
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
