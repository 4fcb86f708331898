package pdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is already formatted for display; amounts are strings.
type ReceiptData struct {
	BusinessName    string
	BusinessAddress string
	BusinessEmail   string

	ReceiptNumber string
	OrderCode     string
	ServiceDate   string
	DatePaid      string

	CustomerName    string
	CustomerAddress string
	CustomerEmail   string
	TechnicianName  string

	Items    []ReceiptItem
	Payments []ReceiptPayment

	Estimate          string
	AdditionalCharges string
	Total             string
	Paid              string
}

type ReceiptItem struct {
	Description string
	Qty         int
	UnitPrice   string
	Amount      string
}

type ReceiptPayment struct {
	Method    string
	Reference string
	PaidAt    string
	Amount    string
}

func (p *MarotoProvider) Receipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if receipt.ReceiptNumber == "" {
		return nil, errors.New("pdf: receipt number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(15,
		text.NewCol(8, receipt.BusinessName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Receipt number: "+receipt.ReceiptNumber, props.Text{Top: 0}),
			text.New("Order: "+receipt.OrderCode, props.Text{Top: 4}),
			text.New("Service date: "+receipt.ServiceDate, props.Text{Top: 8}),
			text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New(receipt.BusinessAddress, props.Text{Align: align.Right}),
			text.New(receipt.BusinessEmail, props.Text{Top: 8, Align: align.Right}),
		),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Billed to", props.Text{Style: fontstyle.Bold}),
			text.New(receipt.CustomerName, props.Text{Top: 5}),
			text.New(receipt.CustomerAddress, props.Text{Top: 9}),
			text.New(receipt.CustomerEmail, props.Text{Top: 20}),
		),
		col.New(6).Add(
			text.New("Technician", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(receipt.TechnicianName, props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.Paid+" paid on "+receipt.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range receipt.Items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Estimate", props.Text{Size: 9}),
		text.NewCol(2, receipt.Estimate, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Additional", props.Text{Size: 9}),
		text.NewCol(2, receipt.AdditionalCharges, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, receipt.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if len(receipt.Payments) > 0 {
		m.AddRow(12,
			text.NewCol(12, "Payments", props.Text{Style: fontstyle.Bold, Size: 10, Top: 4}),
		)
		for _, pay := range receipt.Payments {
			m.AddRow(7,
				text.NewCol(3, pay.Method, props.Text{Size: 9}),
				text.NewCol(4, pay.Reference, props.Text{Size: 9}),
				text.NewCol(3, pay.PaidAt, props.Text{Size: 9}),
				text.NewCol(2, pay.Amount, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
