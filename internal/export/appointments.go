package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Agendamentos"

var headers = []string{"Nº", "Data", "Horário", "Pet", "Serviço", "Status", "Observações"}

// Row is one appointment line of the workbook.
type Row struct {
	ID      int64
	When    time.Time
	HasTime bool
	Pet     string
	Service string
	Status  string
	Notes   string
}

// Exporter writes appointment workbooks into a directory.
type Exporter struct {
	dir string
	now func() time.Time
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Appointments writes rows to a new .xlsx file and returns its path.
func (e *Exporter) Appointments(rows []Row) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, r := range rows {
		row := i + 2
		date, clock := "", ""
		if r.HasTime {
			date = r.When.Format("02/01/2006")
			clock = r.When.Format("15:04")
		}
		values := []interface{}{r.ID, date, clock, r.Pet, r.Service, r.Status, r.Notes}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "F", 20)
	_ = f.SetColWidth(sheetName, "G", "G", 40)
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	path := filepath.Join(e.dir, fmt.Sprintf("agendamentos_%s.xlsx", e.now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}
