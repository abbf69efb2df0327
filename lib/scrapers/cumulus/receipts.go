package cumulus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReceiptSummary is one entry of the receipt listing. Cost and points keep
// the portal's display formatting, they are not normalized.
type ReceiptSummary struct {
	ReceiptId     string
	StoreName     string
	Cost          string
	CumulusPoints string
	PdfRef        string
}

// RawReceipt is one receipt's exported content in both forms, consumed
// opaquely by the receipt document collaborator.
type RawReceipt struct {
	ReceiptId string
	HTML      []byte
	PDF       []byte
}

func formatDate(date time.Time) string {
	// zero padded and locale independent, the listing endpoint is strict
	// about its date format
	return fmt.Sprintf("%04d-%02d-%02d", date.Year(), date.Month(), date.Day())
}

// headers the portal's own frontend sends when it polls the listing over XHR
var listingHeaders = map[string]string{
	"Accept":           "text/html, */*; q=0.01",
	"Accept-Language":  "de",
	"Sec-Fetch-Dest":   "empty",
	"Sec-Fetch-Mode":   "cors",
	"Sec-Fetch-Site":   "same-origin",
	"X-Requested-With": "XMLHttpRequest",
}

// Receipts walks the paginated receipt listing for the given date range and
// returns the accumulated summaries keyed by download id. Pages are fetched
// strictly in ascending order with pacing in between, the page count is only
// known once the first page returns.
func (c *Client) Receipts(ctx context.Context, from, to time.Time) (map[string]ReceiptSummary, error) {
	ctx, span := tracer.Start(ctx, "client:Receipts")
	defer span.End()

	if from.IsZero() || to.IsZero() {
		span.SetStatus(codes.Error, "invalid date input")
		return nil, NewValidationError(CodeNotADate)
	}
	if from.After(to) {
		span.SetStatus(codes.Error, "inverted date range")
		return nil, NewValidationError(CodeRangeInverted)
	}
	if c.state != stateAuthenticated {
		span.SetStatus(codes.Error, "session not authenticated")
		return nil, &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: "session is not authenticated",
		}
	}

	span.SetAttributes(
		attribute.String("date_from", formatDate(from)),
		attribute.String("date_to", formatDate(to)),
	)

	result := map[string]ReceiptSummary{}
	totalPages := 0

	for page := 1; ; page++ {
		res, err := c.Http.R().
			SetContext(ctx).
			SetHeaders(listingHeaders).
			SetQueryParams(map[string]string{
				"sort":           "dateDsc",
				"dateFrom":       formatDate(from),
				"dateTo":         formatDate(to),
				"p":              strconv.Itoa(page),
				"referrer":       c.receiptsUrl,
				"referrerPolicy": "no-referrer-when-downgrade",
			}).
			Get(c.receiptsUrl)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch listing page")
			return nil, &TransportError{
				Reason: fmt.Sprintf("failed to fetch listing page %d", page),
				Err:    err,
			}
		}
		if res.IsError() {
			span.SetStatus(codes.Error, "listing page returned an error status")
			return nil, &TransportError{
				Reason: fmt.Sprintf("listing page %d returned status %d", page, res.StatusCode()),
				Err:    fmt.Errorf("http status %d", res.StatusCode()),
			}
		}

		listing, err := extractReceiptsPage(res.Body())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse listing page")
			return nil, &ParseError{Page: page, Err: err}
		}

		for id, receipt := range listing.receipts {
			if _, exists := result[id]; exists {
				// undefined by the portal, keep the earlier entry and
				// make the data-quality fault visible
				slog.WarnContext(
					ctx, "duplicate download id across pages",
					"download_id", id,
					"page", page,
				)
				continue
			}
			result[id] = receipt
		}

		if totalPages == 0 {
			// the first page decides the loop bound
			totalPages = listing.totalPages
			span.SetAttributes(attribute.Int("total_pages", totalPages))
		}
		if page >= totalPages {
			break
		}
		c.sleep(ctx, c.pace)
	}

	slog.DebugContext(
		ctx, "receipt listing complete",
		"receipts", len(result),
		"pages", totalPages,
	)
	return result, nil
}

// FetchReceipt retrieves one receipt's exported content in HTML and PDF form.
func (c *Client) FetchReceipt(ctx context.Context, receiptId string) (RawReceipt, error) {
	ctx, span := tracer.Start(ctx, "client:FetchReceipt")
	defer span.End()

	if c.state != stateAuthenticated {
		span.SetStatus(codes.Error, "session not authenticated")
		return RawReceipt{}, &AuthError{
			Code:   CodeCouldNotAuthenticate,
			Reason: "session is not authenticated",
		}
	}

	span.SetAttributes(attribute.String("receipt_id", receiptId))

	htmlRes, err := c.fetchExport(ctx, "html", receiptId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch html export")
		return RawReceipt{}, err
	}

	c.sleep(ctx, c.pace)

	pdfRes, err := c.fetchExport(ctx, "pdf", receiptId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch pdf export")
		return RawReceipt{}, err
	}

	// the id sometimes arrives with the link's query tail attached
	cleanId, _, _ := strings.Cut(receiptId, "?")

	return RawReceipt{
		ReceiptId: cleanId,
		HTML:      htmlRes.Body(),
		PDF:       pdfRes.Body(),
	}, nil
}

func (c *Client) fetchExport(ctx context.Context, form, receiptId string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Sec-Fetch-Dest", "iframe").
		SetHeader("Sec-Fetch-Site", "same-origin").
		SetHeader("Referer", c.receiptsUrl).
		SetQueryParam("referrerPolicy", "no-referrer-when-downgrade").
		Get(c.exportUrl + form + "?" + receiptIdMarker + receiptId)
	if err != nil {
		return nil, &TransportError{
			Code:   CodeRetryReceipt,
			Reason: fmt.Sprintf("failed to fetch %s export for receipt %s", form, receiptId),
			Err:    err,
		}
	}
	if res.IsError() {
		return nil, &TransportError{
			Code:   CodeRetryReceipt,
			Reason: fmt.Sprintf("%s export for receipt %s returned status %d", form, receiptId, res.StatusCode()),
			Err:    fmt.Errorf("http status %d", res.StatusCode()),
		}
	}
	return res, nil
}
