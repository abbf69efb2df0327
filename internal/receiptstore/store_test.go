package receiptstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"cumulus-backend/lib/scrapers/cumulus"
	"cumulus-backend/lib/telemetry"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setup(t testing.TB) (Store, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:receiptstore")

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return store, cleanup
}

func TestPutAndList(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	fetchedAt := time.Unix(1704067200, 0)
	err := store.Put(ctx, map[string]cumulus.ReceiptSummary{
		"dl-1": {
			ReceiptId:     "r-100",
			StoreName:     "Migros Zürich",
			Cost:          "CHF 23.50",
			CumulusPoints: "23",
			PdfRef:        "/export?receiptId=r-100",
		},
		"dl-2": {
			ReceiptId:     "r-101",
			StoreName:     "Migros Bern",
			Cost:          "CHF 7.95",
			CumulusPoints: "8",
			PdfRef:        "/export?receiptId=r-101",
		},
	}, fetchedAt)
	require.NoError(t, err)

	receipts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	require.Equal(t, "dl-1", receipts[0].DownloadId)
	require.Equal(t, "r-100", receipts[0].Summary.ReceiptId)
	require.Equal(t, fetchedAt.Unix(), receipts[0].FetchedAt.Unix())
}

func TestPutUpserts(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()

	ctx := context.Background()

	err := store.Put(ctx, map[string]cumulus.ReceiptSummary{
		"dl-1": {ReceiptId: "r-100", StoreName: "Migros Zürich", Cost: "CHF 1.00", CumulusPoints: "1", PdfRef: "a"},
	}, time.Unix(1000, 0))
	require.NoError(t, err)

	err = store.Put(ctx, map[string]cumulus.ReceiptSummary{
		"dl-1": {ReceiptId: "r-100", StoreName: "Migros Zürich", Cost: "CHF 2.00", CumulusPoints: "2", PdfRef: "a"},
	}, time.Unix(2000, 0))
	require.NoError(t, err)

	receipt, found, err := store.Get(ctx, "dl-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "CHF 2.00", receipt.Summary.Cost)
	require.Equal(t, int64(2000), receipt.FetchedAt.Unix())
}

func TestGetMissing(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()

	_, found, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
}
