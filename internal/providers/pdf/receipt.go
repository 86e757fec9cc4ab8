package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptItem struct {
	Description string
	Amount      string
}

// ReceiptData is the fully formatted content of an official receipt.
// Amounts arrive pre-formatted; this layer only lays out the page.
type ReceiptData struct {
	SchoolName  string
	ORNumber    string
	DatePaid    string
	StudentName string
	SchoolYear  string
	Method      string
	Reference   string
	Items       []ReceiptItem
	Total       string
	Balance     string
}

// GenerateReceipt renders an official receipt PDF.
func (p *Provider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(25,
		text.NewCol(8, p.schoolName(receipt), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Official Receipt", props.Text{
			Size:  12,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("OR number: "+receipt.ORNumber, props.Text{Top: 0, Style: fontstyle.Bold}),
			text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 5}),
			text.New("School year: "+receipt.SchoolYear, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Received from", props.Text{Style: fontstyle.Bold}),
			text.New(receipt.StudentName, props.Text{Top: 5}),
		),
	)

	m.AddRow(15,
		col.New(12).Add(
			text.New("Payment method: "+receipt.Method, props.Text{Size: 9}),
			text.New("Reference: "+receipt.Reference, props.Text{Size: 9, Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range receipt.Items {
		m.AddRow(10,
			text.NewCol(8, item.Description, props.Text{Size: 9}),
			text.NewCol(4, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Total paid", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(3, receipt.Total, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(6),
		text.NewCol(3, "Remaining balance", props.Text{Size: 9}),
		text.NewCol(3, receipt.Balance, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(20,
		text.NewCol(12, "This is a system generated receipt and does not require a signature.", props.Text{
			Size: 8,
			Top:  8,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func (p *Provider) schoolName(receipt ReceiptData) string {
	if receipt.SchoolName != "" {
		return receipt.SchoolName
	}
	return "School"
}
