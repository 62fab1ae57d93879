package evidence

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName   = "Preuves"
	dateLayout  = "02/01/2006 15:04:05 UTC"
	headerColor = "4472C4"
)

var exportColumns = []string{
	"Date (UTC)", "Type", "Signataire", "Adresse IP", "Navigateur",
	"Empreinte appareil", "Latitude", "Longitude", "Hash d'intégrité", "Hash PDF",
}

// exportRow flattens a record into the column order above.
func exportRow(rec Record) []interface{} {
	md, _ := rec.DecodeMetadata()
	lat, lng := "", ""
	if md.Geolocation != nil {
		lat = strconv.FormatFloat(md.Geolocation.Lat, 'f', 6, 64)
		lng = strconv.FormatFloat(md.Geolocation.Lng, 'f', 6, 64)
	}
	return []interface{}{
		rec.CreatedAt.UTC().Format(dateLayout),
		string(rec.RequestType),
		rec.SignerEmail,
		md.IP,
		md.UserAgent,
		md.Fingerprint,
		lat,
		lng,
		rec.IntegrityHash,
		md.PDFIntegrityHash,
	}
}

// WriteWorkbook renders records as an XLSX workbook.
func WriteWorkbook(records []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	f.SetCellStyle(sheetName, "A1", last, headerStyle)

	for r, rec := range records {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		row := exportRow(rec)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	f.SetColWidth(sheetName, "A", "C", 24)
	f.SetColWidth(sheetName, "I", "J", 66)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCertificate renders a printable audit certificate for one request.
func WriteCertificate(organizationID, requestID uuid.UUID, records []Record, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Certificat de preuve de signature"), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, tr("Organisation : "+organizationID.String()), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Demande : "+requestID.String()), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Généré le : "+generatedAt.UTC().Format(dateLayout)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for i, rec := range records {
		md, _ := rec.DecodeMetadata()

		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("Preuve %d - %s", i+1, rec.RequestType)), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 9)

		line := func(label, value string) {
			if value == "" {
				return
			}
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(45, 5, tr(label), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 5, tr(value), "", "L", false)
		}
		line("Signataire", rec.SignerEmail)
		line("Horodatage", md.TimestampUTC)
		line("Adresse IP", md.IP)
		line("Navigateur", md.UserAgent)
		line("Empreinte appareil", md.Fingerprint)
		if md.Geolocation != nil {
			line("Géolocalisation", fmt.Sprintf("%.6f, %.6f", md.Geolocation.Lat, md.Geolocation.Lng))
		}
		line("Hash d'intégrité", rec.IntegrityHash)
		line("Hash du PDF scellé", md.PDFIntegrityHash)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
