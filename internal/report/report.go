// Package report 生成状态/履历的离线导出。
// CSV 报表由状态服务直接提供（见 client.Report），此处负责 Excel 格式。
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
)

// StateExportHeader 当前状态导出表头
var StateExportHeader = []string{
	"Item ID",
	"Item Name",
	"Location",
	"Quantity",
	"Since",
}

// HistoryExportHeader 履历导出表头
var HistoryExportHeader = []string{
	"Item ID",
	"Location",
	"Start",
	"End",
	"Quantity",
}

// NameResolver 标识符 → 可读名称（查不到时返回标识符本身）
type NameResolver func(id string) string

// GenerateStateExport 生成当前状态 Excel 文件
func GenerateStateExport(records []models.OccupancyRecord, resolve NameResolver) ([]byte, error) {
	return generate("Current State", StateExportHeader, len(records), func(f *excelize.File, sheet string, row int) error {
		r := records[row]
		name := r.ItemID
		if resolve != nil {
			name = resolve(r.ItemID)
		}
		quantity := ""
		if r.Quantity != nil {
			quantity = fmt.Sprintf("%d", *r.Quantity)
		}
		return setRow(f, sheet, row+2, []any{
			r.ItemID,
			name,
			r.LocationLink,
			quantity,
			r.Start.Format(time.RFC3339),
		})
	})
}

// GenerateHistoryExport 生成单个物品的履历 Excel 文件
func GenerateHistoryExport(history []models.OccupancyRecord) ([]byte, error) {
	return generate("History", HistoryExportHeader, len(history), func(f *excelize.File, sheet string, row int) error {
		r := history[row]
		end := ""
		if r.End != nil {
			end = r.End.Format(time.RFC3339)
		}
		quantity := ""
		if r.Quantity != nil {
			quantity = fmt.Sprintf("%d", *r.Quantity)
		}
		return setRow(f, sheet, row+2, []any{
			r.ItemID,
			r.LocationLink,
			r.Start.Format(time.RFC3339),
			end,
			quantity,
		})
	})
}

func generate(sheetName string, headers []string, rows int, fill func(f *excelize.File, sheet string, row int) error) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前不能 Close

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	for row := 0; row < rows; row++ {
		if err := fill(f, sheetName, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialise workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("failed to compute cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}
