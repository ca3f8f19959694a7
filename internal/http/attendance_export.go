package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
	"github.com/GreaLake/checkIn/internal/worktime"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "考勤记录"

// AttendanceExportHeader 导出表头
var AttendanceExportHeader = []string{
	"签到人",
	"签到类型",
	"签到时间",
	"签退时间",
	"工作时长(小时)",
	"签到地点",
	"工作内容",
	"审批时间",
}

var exportColumnWidths = []float64{12, 16, 20, 20, 14, 28, 40, 20}

const exportTimeLayout = "2006-01-02 15:04:05"

// GenerateAttendanceExport 生成考勤导出 Excel；records 为空时只有表头
func GenerateAttendanceExport(records []*domain.CheckEntry, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	// WriteTo 之前不能 Close

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range AttendanceExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheet, name, name, exportColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, e := range records {
		row := i + 2 // 第1行是表头
		for col, value := range exportRow(e, loc) {
			if value == nil || value == "" {
				continue
			}
			if err := setCellValue(f, exportSheet, col+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// exportRow 按表头顺序取值
func exportRow(e *domain.CheckEntry, loc *time.Location) []any {
	row := []any{
		e.WorkerName,
		e.Label(),
		e.OpenedAt.In(loc).Format(exportTimeLayout),
		nil,
		nil,
		e.Location.String(),
		e.WorkNote,
		nil,
	}
	if e.ClosedAt != nil {
		row[3] = e.ClosedAt.In(loc).Format(exportTimeLayout)
		if h, err := worktime.Hours(e.OpenedAt, *e.ClosedAt); err == nil {
			row[4] = worktime.RoundHours(h)
		}
	}
	if e.DecidedAt != nil {
		row[7] = e.DecidedAt.In(loc).Format(exportTimeLayout)
	}
	return row
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
