package receiptstore

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	download_id TEXT PRIMARY KEY,
	receipt_id TEXT NOT NULL,
	store_name TEXT NOT NULL,
	cost TEXT NOT NULL,
	cumulus_points TEXT NOT NULL,
	pdf_ref TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_fetched_at ON receipts (fetched_at);
`
