// Package export renders hospital inventory as an XLSX workbook.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"blooddoc-api-server/internal/models"
)

const (
	InventorySheet = "Blood Inventory"
	ContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var InventoryHeader = []string{
	"Blood Type",
	"Units",
	"Expiry Date",
	"Last Updated",
	"Entry ID",
}

// InventoryFilename builds the attachment name for a hospital's export.
func InventoryFilename(h *models.Hospital, at time.Time) string {
	return fmt.Sprintf("inventory-%s-%s.xlsx", h.ID.Hex(), at.UTC().Format("20060102"))
}

// InventoryWorkbook writes one row per blood type held by the hospital.
func InventoryWorkbook(h *models.Hospital) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(InventorySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#F8D7DA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range InventoryHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(InventorySheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(InventorySheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, width := range []float64{12, 8, 14, 22, 28} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(InventorySheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, e := range h.BloodInventory.Entries() {
		expiry := ""
		if e.ExpiryDate != nil {
			expiry = e.ExpiryDate.UTC().Format("2006-01-02")
		}
		row := []any{e.BloodType, e.Units, expiry, e.LastUpdated.UTC().Format(time.RFC3339), e.ID}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(InventorySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
