package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/adspace-marketplace/internal/model"
)

// RentalRepo is the ledger of rent transactions submitted by the service.
type RentalRepo struct{ DB *sql.DB }

func NewRentalRepo(db *sql.DB) *RentalRepo { return &RentalRepo{DB: db} }

// Create inserts a SUBMITTED row before the transaction is sent and returns
// its id.
func (r *RentalRepo) Create(ctx context.Context, rec *model.RentalRecord) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO rentals (user_id, token_id, start_time, end_time, website_url, ad_metadata_uri, value_wei, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		rec.UserID, rec.TokenID, rec.StartTime.UTC(), rec.EndTime.UTC(),
		rec.WebsiteURL, rec.AdMetadataURI, rec.ValueWei, model.RentalSubmitted)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = uint64(id)
	rec.Status = model.RentalSubmitted
	return rec.ID, nil
}

// MarkConfirmed records the mined transaction hash.
func (r *RentalRepo) MarkConfirmed(ctx context.Context, id uint64, txHash string) error {
	return r.setStatus(ctx, id, model.RentalConfirmed, nullable(txHash), nil)
}

// MarkSubmitted records the hash of a sent transaction whose receipt has not
// been observed yet. The row stays SUBMITTED.
func (r *RentalRepo) MarkSubmitted(ctx context.Context, id uint64, txHash string) error {
	return r.setStatus(ctx, id, model.RentalSubmitted, nullable(txHash), nil)
}

// MarkFailed records the failure reason and, when the transaction was sent,
// its hash.
func (r *RentalRepo) MarkFailed(ctx context.Context, id uint64, txHash, reason string) error {
	if len(reason) > 512 {
		reason = reason[:512]
	}
	return r.setStatus(ctx, id, model.RentalFailed, nullable(txHash), &reason)
}

func (r *RentalRepo) setStatus(ctx context.Context, id uint64, status string, txHash, reason *string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE rentals SET status=?, tx_hash=?, failure_reason=? WHERE id=?",
		status, txHash, reason, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns a user's ledger rows, newest first.
func (r *RentalRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.RentalRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, token_id, start_time, end_time, website_url, ad_metadata_uri,
		        value_wei, tx_hash, status, failure_reason, created_at, updated_at
		   FROM rentals WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RentalRecord{}
	for rows.Next() {
		var (
			rec    model.RentalRecord
			txHash sql.NullString
			reason sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TokenID, &rec.StartTime, &rec.EndTime,
			&rec.WebsiteURL, &rec.AdMetadataURI, &rec.ValueWei, &txHash, &rec.Status, &reason,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.TxHash = txHash.String
		if reason.Valid {
			rec.FailureReason = &reason.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
