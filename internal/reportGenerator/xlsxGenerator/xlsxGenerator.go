package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/KotFed0t/papertrade/utils"
	"github.com/xuri/excelize/v2"
)

const (
	PortfolioSheet = "Portfolio"
	HistorySheet   = "History"

	dateTimeLayout = "2006-01-02 15:04:05"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) Generate(ctx context.Context, report model.LedgerReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	// default sheet becomes the portfolio sheet
	if err = f.SetSheetName("Sheet1", PortfolioSheet); err != nil {
		return nil, "", err
	}

	if err = g.fillPortfolioSheet(f, report.Portfolio); err != nil {
		slog.Error("got error while filling portfolio sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if _, err = f.NewSheet(HistorySheet); err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillHistorySheet(f, report.History); err != nil {
		slog.Error("got error while filling history sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) writeTitle(f *excelize.File, sheet, from, to, title, color string) error {
	if err := f.MergeCell(sheet, from, to); err != nil {
		return err
	}

	if err := f.SetCellStr(sheet, from, title); err != nil {
		return err
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err = f.SetCellStyle(sheet, from, from, styleID); err != nil {
		return fmt.Errorf("apply title style: %w", err)
	}

	return nil
}

func (g *XLSXGenerator) fillPortfolioSheet(f *excelize.File, portfolio model.Portfolio) error {
	err := g.writeTitle(f, PortfolioSheet, "A1", "E1", "Positions", "#cfe2f3")
	if err != nil {
		return err
	}

	_ = f.SetCellStr(PortfolioSheet, "A2", "Symbol")
	_ = f.SetCellStr(PortfolioSheet, "B2", "Name")
	_ = f.SetCellStr(PortfolioSheet, "C2", "Shares")
	_ = f.SetCellStr(PortfolioSheet, "D2", "Price")
	_ = f.SetCellStr(PortfolioSheet, "E2", "TOTAL")

	row := 3
	for _, position := range portfolio.Positions {
		_ = f.SetCellStr(PortfolioSheet, fmt.Sprintf("A%d", row), position.Symbol)
		_ = f.SetCellStr(PortfolioSheet, fmt.Sprintf("B%d", row), position.Name)
		_ = f.SetCellInt(PortfolioSheet, fmt.Sprintf("C%d", row), int64(position.Shares))
		_ = f.SetCellValue(PortfolioSheet, fmt.Sprintf("D%d", row), position.Price.InexactFloat64())
		_ = f.SetCellValue(PortfolioSheet, fmt.Sprintf("E%d", row), position.Total.InexactFloat64())
		row++
	}

	_ = f.SetCellStr(PortfolioSheet, fmt.Sprintf("A%d", row), "CASH")
	_ = f.SetCellValue(PortfolioSheet, fmt.Sprintf("E%d", row), portfolio.Cash.InexactFloat64())
	row++
	_ = f.SetCellStr(PortfolioSheet, fmt.Sprintf("A%d", row), "TOTAL")
	_ = f.SetCellValue(PortfolioSheet, fmt.Sprintf("E%d", row), portfolio.Total.InexactFloat64())

	return nil
}

func (g *XLSXGenerator) fillHistorySheet(f *excelize.File, history []model.HistoryEntry) error {
	err := g.writeTitle(f, HistorySheet, "A1", "F1", "Transactions", "#cccccc")
	if err != nil {
		return err
	}

	_ = f.SetCellStr(HistorySheet, "A2", "Symbol")
	_ = f.SetCellStr(HistorySheet, "B2", "Name")
	_ = f.SetCellStr(HistorySheet, "C2", "Shares")
	_ = f.SetCellStr(HistorySheet, "D2", "Price")
	_ = f.SetCellStr(HistorySheet, "E2", "Amount")
	_ = f.SetCellStr(HistorySheet, "F2", "Transacted")

	for i, entry := range history {
		row := i + 3
		_ = f.SetCellStr(HistorySheet, fmt.Sprintf("A%d", row), entry.Symbol)
		_ = f.SetCellStr(HistorySheet, fmt.Sprintf("B%d", row), entry.Name)
		_ = f.SetCellInt(HistorySheet, fmt.Sprintf("C%d", row), int64(entry.Shares))
		_ = f.SetCellValue(HistorySheet, fmt.Sprintf("D%d", row), entry.Price.InexactFloat64())
		_ = f.SetCellValue(HistorySheet, fmt.Sprintf("E%d", row), entry.Amount().InexactFloat64())
		_ = f.SetCellStr(HistorySheet, fmt.Sprintf("F%d", row), entry.DtCreate.Format(dateTimeLayout))
	}

	return nil
}
