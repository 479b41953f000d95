package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tasksync/internal/database"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes operator-facing spreadsheets of the dead-letter archive.
type Exporter struct {
	db     *database.DB
	path   string
	logger *zerolog.Logger
}

func NewExporter(db *database.DB, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{db: db, path: path, logger: logger}
}

// DeadLetters dumps the archive to an xlsx file and returns its path.
func (e *Exporter) DeadLetters(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	letters, err := e.db.ListDeadLetters(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting dead letters: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Dead Letters"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Entry ID", "Task ID", "Operation", "Payload", "Last Error", "Failed At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetName, "A1", "F1", headerStyle)

	for i, dl := range letters {
		row := i + 2
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), dl.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), dl.TaskID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), dl.Operation)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), dl.Payload)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), dl.LastError)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), dl.FailedAt.Format("2006-01-02 15:04:05"))
	}

	_ = f.SetColWidth(sheetName, "A", "B", 38)
	_ = f.SetColWidth(sheetName, "C", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "D", 60)
	_ = f.SetColWidth(sheetName, "E", "E", 40)
	_ = f.SetColWidth(sheetName, "F", "F", 20)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("deadletters_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	if e.logger != nil {
		e.logger.Info().Str("file_path", filePath).Int("rows", len(letters)).Msg("dead letter export created")
	}
	return filePath, nil
}
