// Package receiptstore persists fetched receipt summaries so repeated CLI
// runs don't have to re-scrape date ranges that were already exported.
package receiptstore

import (
	"context"
	"database/sql"
	"time"

	"cumulus-backend/lib/scrapers/cumulus"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Receipt is a stored summary together with its mapping key and the time it
// was scraped.
type Receipt struct {
	DownloadId string
	Summary    cumulus.ReceiptSummary
	FetchedAt  time.Time
}

func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	return NewStore(db)
}

func NewStore(db *sql.DB) (Store, error) {
	_, err := db.Exec(schema)
	if err != nil {
		return Store{}, err
	}
	return Store{db: db}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Put upserts one listing result. Re-exporting a range the portal has since
// amended overwrites the stored rows for the affected download ids.
func (s Store) Put(ctx context.Context, receipts map[string]cumulus.ReceiptSummary, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for downloadId, summary := range receipts {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO receipts
				(download_id, receipt_id, store_name, cost, cumulus_points, pdf_ref, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (download_id) DO UPDATE SET
				receipt_id = excluded.receipt_id,
				store_name = excluded.store_name,
				cost = excluded.cost,
				cumulus_points = excluded.cumulus_points,
				pdf_ref = excluded.pdf_ref,
				fetched_at = excluded.fetched_at`,
			downloadId,
			summary.ReceiptId,
			summary.StoreName,
			summary.Cost,
			summary.CumulusPoints,
			summary.PdfRef,
			fetchedAt.Unix(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s Store) List(ctx context.Context) ([]Receipt, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT download_id, receipt_id, store_name, cost, cumulus_points, pdf_ref, fetched_at
		FROM receipts
		ORDER BY fetched_at DESC, download_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var r Receipt
		var fetchedAt int64
		err := rows.Scan(
			&r.DownloadId,
			&r.Summary.ReceiptId,
			&r.Summary.StoreName,
			&r.Summary.Cost,
			&r.Summary.CumulusPoints,
			&r.Summary.PdfRef,
			&fetchedAt,
		)
		if err != nil {
			return nil, err
		}
		r.FetchedAt = time.Unix(fetchedAt, 0)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (s Store) Get(ctx context.Context, downloadId string) (Receipt, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT download_id, receipt_id, store_name, cost, cumulus_points, pdf_ref, fetched_at
		FROM receipts WHERE download_id = ?`,
		downloadId,
	)

	var r Receipt
	var fetchedAt int64
	err := row.Scan(
		&r.DownloadId,
		&r.Summary.ReceiptId,
		&r.Summary.StoreName,
		&r.Summary.Cost,
		&r.Summary.CumulusPoints,
		&r.Summary.PdfRef,
		&fetchedAt,
	)
	if err == sql.ErrNoRows {
		return Receipt{}, false, nil
	}
	if err != nil {
		return Receipt{}, false, err
	}
	r.FetchedAt = time.Unix(fetchedAt, 0)
	return r, true, nil
}
