package cumulus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "2024-01-05", formatDate(date(2024, time.January, 5)))
	require.Equal(t, "0999-11-30", formatDate(date(999, time.November, 30)))
}

func TestReceiptsRejectsZeroDates(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t)

	_, err := client.Receipts(context.Background(), time.Time{}, date(2024, time.January, 31))

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, CodeNotADate, valErr.Code)
	require.Equal(t, 0, portal.requestCount())

	_, err = client.Receipts(context.Background(), date(2024, time.January, 1), time.Time{})
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, CodeNotADate, valErr.Code)
	require.Equal(t, 0, portal.requestCount())
}

func TestReceiptsRejectsInvertedRange(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t)

	_, err := client.Receipts(
		context.Background(),
		date(2024, time.February, 1),
		date(2024, time.January, 1),
	)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, CodeRangeInverted, valErr.Code)
	require.Equal(t, 0, portal.requestCount())
}

func TestReceiptsRequiresAuthentication(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t)

	_, err := client.Receipts(
		context.Background(),
		date(2024, time.January, 1),
		date(2024, time.January, 31),
	)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Empty(t, portal.listingRequests)
}

func TestReceiptsTwoPages(t *testing.T) {
	portal := newFakePortal(t)
	portal.listingPages["1"] = listingPage(
		paginationControls(1, 2),
		receiptRow("dl-1", "r-100", "Migros Zürich", "CHF 23.50", "23"),
		receiptRow("dl-2", "r-101", "Migros Bern", "CHF 7.95", "8"),
	)
	portal.listingPages["2"] = listingPage(
		paginationControls(1, 2),
		receiptRow("dl-3", "r-102", "Migros Luzern", "CHF 42.10", "42"),
	)

	client := portal.login(t)
	receipts, err := client.Receipts(
		context.Background(),
		date(2024, time.January, 1),
		date(2024, time.January, 31),
	)
	require.NoError(t, err)

	require.Len(t, receipts, 3)
	require.Equal(t, "r-100", receipts["dl-1"].ReceiptId)
	require.Equal(t, "r-101", receipts["dl-2"].ReceiptId)
	require.Equal(t, "r-102", receipts["dl-3"].ReceiptId)

	// exactly two listing requests, in ascending page order
	require.Equal(t, []string{"1", "2"}, portal.listingRequests)

	query := portal.listingQueries[0]
	require.Equal(t, "2024-01-01", query.Get("dateFrom"))
	require.Equal(t, "2024-01-31", query.Get("dateTo"))
	require.Equal(t, "dateDsc", query.Get("sort"))
}

func TestReceiptsEmptyListing(t *testing.T) {
	portal := newFakePortal(t)
	portal.listingPages["1"] = listingPage("")

	client := portal.login(t)
	receipts, err := client.Receipts(
		context.Background(),
		date(2024, time.March, 1),
		date(2024, time.March, 31),
	)
	require.NoError(t, err)

	require.Empty(t, receipts)
	require.Equal(t, []string{"1"}, portal.listingRequests)
}

func TestReceiptsDuplicateDownloadIdKeepsFirst(t *testing.T) {
	portal := newFakePortal(t)
	portal.listingPages["1"] = listingPage(
		paginationControls(1, 2),
		receiptRow("dl-dup", "r-1", "Migros Zürich", "CHF 1.00", "1"),
	)
	portal.listingPages["2"] = listingPage(
		paginationControls(1, 2),
		receiptRow("dl-dup", "r-2", "Migros Bern", "CHF 2.00", "2"),
	)

	client := portal.login(t)
	receipts, err := client.Receipts(
		context.Background(),
		date(2024, time.January, 1),
		date(2024, time.January, 31),
	)
	require.NoError(t, err)

	require.Len(t, receipts, 1)
	require.Equal(t, "r-1", receipts["dl-dup"].ReceiptId)
}

func TestFetchReceipt(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	raw, err := client.FetchReceipt(context.Background(), "r-554?noDownload=true")
	require.NoError(t, err)

	require.Equal(t, "r-554", raw.ReceiptId)
	require.Equal(t, []byte(portal.exports["html"]), raw.HTML)
	require.Equal(t, []byte(portal.exports["pdf"]), raw.PDF)
}
