package cumulus

import (
	"bytes"
	"log/slog"
	"strconv"
	"strings"

	"cumulus-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// value attribute of the "select all" checkbox heading the listing table
const selectAllValue = "all"

// marker preceding the receipt id in a detail link's href
const receiptIdMarker = "receiptId="

type pageListing struct {
	totalPages int
	receipts   map[string]ReceiptSummary
}

// extractReceiptsPage turns one listing page's markup into its pagination
// bound and the receipt summaries it carries. The layout is irregular enough
// that extraction is best effort per row: a malformed row is skipped with a
// diagnostic, it never fails the page.
func extractReceiptsPage(body []byte) (pageListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageListing{}, err
	}

	listing := pageListing{
		totalPages: extractTotalPages(doc),
		receipts:   map[string]ReceiptSummary{},
	}

	doc.Find(`input[type="checkbox"]`).Each(func(_ int, sel *goquery.Selection) {
		downloadId := sel.AttrOr("value", "")
		if downloadId == "" || downloadId == selectAllValue {
			return
		}

		receipt, ok := extractRow(sel.Get(0))
		if !ok {
			slog.Warn("skipping malformed receipt row", "download_id", downloadId)
			return
		}
		listing.receipts[downloadId] = receipt
	})

	return listing, nil
}

// pagination controls expose their page index as a numeric data-value, the
// page count is the largest one. gaps included: {1,2,3,5} still means 5
// pages. no controls at all means a single page.
func extractTotalPages(doc *goquery.Document) int {
	totalPages := 1
	doc.Find(`a[aria-label="Seite"]`).Each(func(_ int, sel *goquery.Selection) {
		page, err := strconv.Atoi(sel.AttrOr("data-value", ""))
		if err != nil {
			return
		}
		if page > totalPages {
			totalPages = page
		}
	})
	return totalPages
}

// extractRow walks forward in document order from a row's checkbox: first to
// the detail link, then through the three data cells for store, cost and
// points. The walk is fenced into the checkbox's table row so a gap in one
// row can't pick up the next row's cells. A partial record is never emitted.
func extractRow(checkbox *html.Node) (ReceiptSummary, bool) {
	row := htmlutil.Ancestor(checkbox, "tr")

	link := htmlutil.FindNextWithin(row, checkbox, func(n *html.Node) bool {
		return n.Data == "a" && htmlutil.HasClass(n, "ui-js-toggle-modal")
	})
	if link == nil {
		return ReceiptSummary{}, false
	}

	href := htmlutil.Attr(link, "href")
	receiptId := href
	if i := strings.LastIndex(href, receiptIdMarker); i >= 0 {
		receiptId = href[i+len(receiptIdMarker):]
	}

	store := htmlutil.FindNextWithin(row, link, htmlutil.IsElement("td"))
	cost := htmlutil.FindNextWithin(row, store, htmlutil.IsElement("td"))
	points := htmlutil.FindNextWithin(row, cost, htmlutil.IsElement("td"))
	if store == nil || cost == nil || points == nil {
		return ReceiptSummary{}, false
	}

	return ReceiptSummary{
		ReceiptId:     receiptId,
		StoreName:     htmlutil.CleanText(htmlutil.GetText(store)),
		Cost:          htmlutil.CleanText(htmlutil.GetText(cost)),
		CumulusPoints: htmlutil.CleanText(htmlutil.GetText(points)),
		PdfRef:        href,
	}, true
}
