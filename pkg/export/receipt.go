package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptData carries the fields printed on a reception receipt (cargo).
type ReceiptData struct {
	Expediente string
	ReceivedAt time.Time
	Sender     string
	Subject    string
	DocType    string
	Priority   string
	State      string
	QRToken    string
	LookupURL  string
}

// ReceiptRenderer produces the PDF cargo handed to the citizen at intake.
type ReceiptRenderer struct {
	title string
}

// NewReceiptRenderer constructs a renderer with the issuing entity name.
func NewReceiptRenderer(title string) *ReceiptRenderer {
	if title == "" {
		title = "MESA DE PARTES"
	}
	return &ReceiptRenderer{title: title}
}

const subjectMaxLen = 80

// Render builds the receipt PDF.
func (r *ReceiptRenderer) Render(data ReceiptData) ([]byte, error) {
	if data.Expediente == "" {
		return nil, fmt.Errorf("receipt requires an expediente number")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, r.title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "CARGO DE RECEPCION", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Expediente", data.Expediente},
		{"Fecha de recepcion", data.ReceivedAt.Format("02/01/2006 15:04")},
		{"Remitente", data.Sender},
		{"Asunto", truncate(data.Subject, subjectMaxLen)},
		{"Tipo de documento", data.DocType},
		{"Prioridad", data.Priority},
		{"Estado", data.State},
		{"Codigo QR", data.QRToken},
	}

	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "Consulte el estado de su documento en:", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "U", 9)
	pdf.CellFormat(0, 6, data.LookupURL, "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
