// Package receiptdoc turns the raw exported content of a single receipt into
// a structured document. It only ever sees opaque bytes, how they were
// obtained is the scraper's business.
package receiptdoc

import (
	"bytes"
	"strings"

	"cumulus-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type LineItem struct {
	Article  string
	Quantity string
	Price    string
}

type Document struct {
	ReceiptId string
	PDF       []byte
	Items     []LineItem
	Total     string
}

// New parses the HTML form of an exported receipt and keeps the PDF form
// verbatim. Rows that don't carry the three item cells are ignored, receipt
// exports mix item rows with headers and separators.
func New(receiptId string, htmlContent, pdfContent []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		return Document{}, err
	}

	d := Document{
		ReceiptId: receiptId,
		PDF:       pdfContent,
	}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		article := htmlutil.CleanText(cells.Eq(0).Text())
		quantity := htmlutil.CleanText(cells.Eq(1).Text())
		price := htmlutil.CleanText(cells.Eq(2).Text())
		if article == "" {
			return
		}

		if strings.EqualFold(article, "total") {
			d.Total = price
			return
		}

		d.Items = append(d.Items, LineItem{
			Article:  article,
			Quantity: quantity,
			Price:    price,
		})
	})

	return d, nil
}
