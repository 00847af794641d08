package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/crmkit/pipeline-engine/internal/domain/pipeline"
)

// SummaryExporter renders a pipeline summary as an xlsx workbook: one header
// row, then one row per stage in definition order (zero counts included).
type SummaryExporter struct {
	logger *zap.Logger
}

// NewSummaryExporter creates a summary exporter
func NewSummaryExporter(logger *zap.Logger) *SummaryExporter {
	return &SummaryExporter{logger: logger}
}

// Write renders the summary for the definition and streams the workbook to w
func (e *SummaryExporter) Write(def *pipeline.Definition, tenantID string, counts map[string]int, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	setCell := func(cell string, value interface{}) {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			e.logger.Warn("Failed to set cell", zap.String("cell", cell), zap.Error(err))
		}
	}

	setCell("A1", fmt.Sprintf("%s pipeline", def.Kind))
	setCell("B1", tenantID)
	setCell("C1", time.Now().Format("2006-01-02"))
	setCell("A2", "Stage")
	setCell("B2", "Entities")

	total := 0
	for i, stage := range def.Stages {
		row := i + 3
		setCell(fmt.Sprintf("A%d", row), stage.String())
		setCell(fmt.Sprintf("B%d", row), counts[stage.String()])
		total += counts[stage.String()]
	}

	totalRow := len(def.Stages) + 3
	setCell(fmt.Sprintf("A%d", totalRow), "Total")
	setCell(fmt.Sprintf("B%d", totalRow), total)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Summary exported",
		zap.String("kind", def.Kind.String()),
		zap.String("tenant_id", tenantID),
		zap.Int("stages", len(def.Stages)))
	return nil
}
