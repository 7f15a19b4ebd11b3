package rank

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/alecgard/studyhub/internal/ledger"
)

const exportSheet = "Sheet1"

var exportHeader = []any{"Place", "ID", "Nickname", "Handle", "Tier", "Solved", "Seconds", "Hours"}

// ExportMonth writes the monthly leaderboard of group as an xlsx workbook.
func (s *Service) ExportMonth(ctx context.Context, w io.Writer, group string, ym ledger.YearMonth) error {
	entries, err := s.RankMonth(ctx, group, ym)
	if err != nil {
		return err
	}
	return writeWorkbook(w, entries)
}

func writeWorkbook(w io.Writer, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			i + 1,
			e.ID,
			e.Nickname,
			e.Handle,
			e.Tier,
			e.SolvedCount,
			e.Duration,
			fmt.Sprintf("%.2f", float64(e.Duration)/3600),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
