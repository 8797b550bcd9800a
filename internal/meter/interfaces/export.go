package interfaces

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"prepaid-meter/internal/meter/application"
	meter "prepaid-meter/internal/meter/domain"
	"prepaid-meter/internal/observability/metrics"
	tariff "prepaid-meter/internal/tariff/domain"
)

// Format is an export rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for unsupported export formats.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat validates a format name. Empty means json.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", ErrUnknownFormat
	}
}

// ContentType returns the HTTP media type.
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Filename returns the download name for a report generated at t.
func (f Format) Filename(t time.Time) string {
	ext := string(f)
	if f == FormatText {
		ext = "txt"
	}
	return fmt.Sprintf("consommation-export-%s.%s", t.Format(meter.DateLayout), ext)
}

// Report is everything an export renders.
type Report struct {
	State       meter.State
	Plan        tariff.Plan
	Currency    string
	GeneratedAt time.Time
}

// Render produces the report in format.
func Render(format Format, report Report) ([]byte, error) {
	start := time.Now()
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = application.EncodeSnapshot(report.State, report.GeneratedAt)
	case FormatText:
		data = BuildTextReport(report)
	case FormatCSV:
		data, err = BuildCSV(report)
	case FormatPDF:
		data, err = BuildPDF(report)
	case FormatXLSX:
		data, err = BuildXLSX(report)
	default:
		err = ErrUnknownFormat
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveExport(string(format), result, time.Since(start))
	return data, err
}

func money(amount float64) string {
	return fmt.Sprintf("%.0f", tariff.RoundAmount(amount))
}

func energy(kwh float64) string {
	return fmt.Sprintf("%.2f", tariff.RoundEnergy(kwh))
}

// BuildTextReport renders the plain-text report: current status, reading history, recharge history.
func BuildTextReport(report Report) []byte {
	var b strings.Builder
	settings := report.State.Settings

	b.WriteString("RAPPORT DE CONSOMMATION ELECTRIQUE\n")
	fmt.Fprintf(&b, "Genere le: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04"))

	b.WriteString("== ETAT ACTUEL ==\n")
	fmt.Fprintf(&b, "Credit restant: %s kWh\n", energy(settings.Credit.Balance()))
	fmt.Fprintf(&b, "Tarif: %s (%s)\n", report.Plan.Name, report.Plan.ID)
	fmt.Fprintf(&b, "Tranche 1: %.2f %s/kWh jusqu'a %.0f kWh\n", report.Plan.Tier1Price, report.Currency, report.Plan.Threshold())
	fmt.Fprintf(&b, "Tranche 2: %.2f %s/kWh\n", report.Plan.Tier2Price, report.Currency)
	fmt.Fprintf(&b, "TVA: %.2f%%\n\n", settings.TaxPercent)

	b.WriteString("== HISTORIQUE DES RELEVES ==\n")
	fmt.Fprintf(&b, "%-12s %12s %14s %14s\n", "Date", "Index", "Conso (kWh)", "Cout ("+report.Currency+")")
	for _, r := range report.State.Readings {
		fmt.Fprintf(&b, "%-12s %12.2f %14s %14s\n", meter.FormatDate(r.Date), r.RawValue, energy(r.Consumption), money(r.Cost))
	}
	if len(report.State.Readings) == 0 {
		b.WriteString("(aucun releve)\n")
	}
	b.WriteString("\n")

	b.WriteString("== HISTORIQUE DES RECHARGES ==\n")
	fmt.Fprintf(&b, "%-12s %14s %12s %14s\n", "Date", "Montant", "Unites", "Prix/kWh")
	for _, r := range report.State.Recharges {
		fmt.Fprintf(&b, "%-12s %14s %12s %14.2f\n", meter.FormatDate(r.Date), money(r.Amount), energy(r.Units), r.Rate)
	}
	if len(report.State.Recharges) == 0 {
		b.WriteString("(aucune recharge)\n")
	}
	return []byte(b.String())
}

// BuildCSV renders both ledgers as one CSV with a leading kind column.
func BuildCSV(report Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"kind", "id", "date", "reading", "consumption_kwh", "cost", "amount", "units", "rate"}); err != nil {
		return nil, err
	}
	for _, r := range report.State.Readings {
		row := []string{
			"reading",
			r.ID,
			meter.FormatDate(r.Date),
			fmt.Sprintf("%.2f", r.RawValue),
			energy(r.Consumption),
			money(r.Cost),
			"", "", "",
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	for _, r := range report.State.Recharges {
		row := []string{
			"recharge",
			r.ID,
			meter.FormatDate(r.Date),
			"", "", "",
			money(r.Amount),
			energy(r.Units),
			fmt.Sprintf("%.2f", r.Rate),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a minimal PDF report.
func BuildPDF(report Report) ([]byte, error) {
	settings := report.State.Settings
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Rapport de consommation electrique")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Credit (kWh): %s", energy(settings.Credit.Balance())))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Plan: %s (%.2f / %.2f %s per kWh)", report.Plan.ID, report.Plan.Tier1Price, report.Plan.Tier2Price, report.Currency))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("TVA: %.2f%%", settings.TaxPercent))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Reading", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Consumption (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Cost ("+report.Currency+")", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range report.State.Readings {
		pdf.CellFormat(35, 6, meter.FormatDate(r.Date), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", r.RawValue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, energy(r.Consumption), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, money(r.Cost), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Units (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Rate", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, r := range report.State.Recharges {
		pdf.CellFormat(35, 6, meter.FormatDate(r.Date), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, money(r.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, energy(r.Units), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", r.Rate), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders a workbook with summary, readings and recharges sheets.
func BuildXLSX(report Report) ([]byte, error) {
	settings := report.State.Settings
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	readingsSheet := "readings"
	rechargesSheet := "recharges"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(rechargesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Rapport de consommation electrique")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", report.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Credit (kWh)")
	_ = f.SetCellValue(summarySheet, "B4", tariff.RoundEnergy(settings.Credit.Balance()))
	_ = f.SetCellValue(summarySheet, "A5", "Plan")
	_ = f.SetCellValue(summarySheet, "B5", report.Plan.ID)
	_ = f.SetCellValue(summarySheet, "A6", "TVA (%)")
	_ = f.SetCellValue(summarySheet, "B6", settings.TaxPercent)
	_ = f.SetCellValue(summarySheet, "A7", "Currency")
	_ = f.SetCellValue(summarySheet, "B7", report.Currency)

	_ = f.SetCellValue(readingsSheet, "A1", "Date")
	_ = f.SetCellValue(readingsSheet, "B1", "Reading")
	_ = f.SetCellValue(readingsSheet, "C1", "Consumption (kWh)")
	_ = f.SetCellValue(readingsSheet, "D1", "Cost")
	for i, r := range report.State.Readings {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), meter.FormatDate(r.Date))
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), r.RawValue)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", row), tariff.RoundEnergy(r.Consumption))
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", row), tariff.RoundAmount(r.Cost))
	}

	_ = f.SetCellValue(rechargesSheet, "A1", "Date")
	_ = f.SetCellValue(rechargesSheet, "B1", "Amount")
	_ = f.SetCellValue(rechargesSheet, "C1", "Units (kWh)")
	_ = f.SetCellValue(rechargesSheet, "D1", "Rate")
	for i, r := range report.State.Recharges {
		row := i + 2
		_ = f.SetCellValue(rechargesSheet, fmt.Sprintf("A%d", row), meter.FormatDate(r.Date))
		_ = f.SetCellValue(rechargesSheet, fmt.Sprintf("B%d", row), r.Amount)
		_ = f.SetCellValue(rechargesSheet, fmt.Sprintf("C%d", row), r.Units)
		_ = f.SetCellValue(rechargesSheet, fmt.Sprintf("D%d", row), r.Rate)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
