// Package report renders filtered attendance records into downloadable
// Excel and PDF documents.
package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hudhuria/core/attendance"
)

// pdfMaxRows caps the PDF table so a report stays a handful of pages.
const pdfMaxRows = 100

var columns = []string{"Date", "Time", "Student", "Class", "Status"}

type Service struct {
	attSvc *attendance.Service
}

func NewService(attSvc *attendance.Service) *Service {
	return &Service{attSvc: attSvc}
}

// Excel exports filtered attendance as an .xlsx workbook.
func (svc *Service) Excel(ctx context.Context, filter attendance.QueryFilter) (*bytes.Buffer, error) {
	recs, err := svc.attSvc.Filter(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Attendance Report"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(idx)
	if err = f.DeleteSheet("Sheet1"); err != nil {
		return nil, errors.Wrap(err, "dropping default sheet")
	}

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err = f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}

	for i, rec := range recs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			rec.Timestamp.UTC().Format("2006-01-02"),
			rec.Timestamp.UTC().Format("15:04"),
			rec.StudentName,
			rec.ClassName,
			strings.ToUpper(rec.Status),
		}
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, errors.Wrap(err, "writing row")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "serializing workbook")
	}
	return buf, nil
}

// PDF exports filtered attendance as a PDF; the table is truncated to
// pdfMaxRows records.
func (svc *Service) PDF(ctx context.Context, filter attendance.QueryFilter) (*bytes.Buffer, error) {
	recs, err := svc.attSvc.Filter(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(recs) > pdfMaxRows {
		recs = recs[:pdfMaxRows]
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 24, "Attendance Report", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	if filter.DateFrom != nil || filter.DateTo != nil {
		from, to := "Start", "Now"
		if filter.DateFrom != nil {
			from = filter.DateFrom.UTC().Format("2006-01-02")
		}
		if filter.DateTo != nil {
			to = filter.DateTo.UTC().Format("2006-01-02")
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 14, fmt.Sprintf("Period: %s to %s", from, to), "", 1, "L", false, 0, "")
		pdf.Ln(6)
	}

	widths := []float64{80, 60, 140, 120, 70}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(67, 56, 202)
	pdf.SetTextColor(255, 255, 255)
	for i, col := range columns {
		pdf.CellFormat(widths[i], 18, col, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetFillColor(248, 250, 252)
	pdf.SetTextColor(0, 0, 0)
	for _, rec := range recs {
		cells := []string{
			rec.Timestamp.UTC().Format("2006-01-02"),
			rec.Timestamp.UTC().Format("15:04"),
			truncate(rec.StudentName, 20),
			truncate(rec.ClassName, 15),
			strings.ToUpper(rec.Status),
		}
		for i, cell := range cells {
			pdf.CellFormat(widths[i], 16, cell, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err = pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "serializing pdf")
	}
	return &buf, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
