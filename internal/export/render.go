package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildReportPDF renders a monthly report as PDF.
func BuildReportPDF(report *MonthlyReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Energy Reconciliation Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Meter: %s", report.MeterID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Zone: %s", report.Zone))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", report.Month.Format("2006-01")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total Energy (kWh): %.3f", report.TotalEnergy))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Cost: %.2f", report.TotalCost))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Energy (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Cost", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range report.Days {
		pdf.CellFormat(40, 6, row.Day.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.3f", row.EnergyKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", row.Cost), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a monthly report as XLSX.
func BuildReportXLSX(report *MonthlyReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	daysSheet := "days"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(daysSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Energy Reconciliation Report")
	_ = f.SetCellValue(summarySheet, "A3", "Meter")
	_ = f.SetCellValue(summarySheet, "B3", report.MeterID)
	_ = f.SetCellValue(summarySheet, "A4", "Zone")
	_ = f.SetCellValue(summarySheet, "B4", string(report.Zone))
	_ = f.SetCellValue(summarySheet, "A5", "Month")
	_ = f.SetCellValue(summarySheet, "B5", report.Month.Format("2006-01"))
	_ = f.SetCellValue(summarySheet, "A6", "Total Energy (kWh)")
	_ = f.SetCellValue(summarySheet, "B6", report.TotalEnergy)
	_ = f.SetCellValue(summarySheet, "A7", "Total Cost")
	_ = f.SetCellValue(summarySheet, "B7", report.TotalCost)

	_ = f.SetCellValue(daysSheet, "A1", "Day")
	_ = f.SetCellValue(daysSheet, "B1", "Energy (kWh)")
	_ = f.SetCellValue(daysSheet, "C1", "Cost")
	_ = f.SetCellValue(daysSheet, "D1", "Energy Sum")
	_ = f.SetCellValue(daysSheet, "E1", "Cost Sum")
	for i, row := range report.Days {
		line := i + 2
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("A%d", line), row.Day.Format("2006-01-02"))
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("B%d", line), row.EnergyKWh)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("C%d", line), row.Cost)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("D%d", line), row.EnergySum)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("E%d", line), row.CostSum)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
