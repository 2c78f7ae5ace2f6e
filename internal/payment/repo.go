package payment

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const paymentCols = `id, booking_id, user_id, amount_cents, currency, method, status,
	COALESCE(external_tx_id,''), COALESCE(failure_reason,''), created_at, completed_at, refunded_at, version`

func (r *Repo) Insert(ctx context.Context, p *Payment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, booking_id, user_id, amount_cents, currency, method, status, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0)`,
		p.ID, p.BookingID, p.UserID, p.AmountCents, p.Currency, p.Method, string(p.Status), p.CreatedAt,
	)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (*Payment, error) {
	return r.scanOne(r.DB.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id=$1`, id))
}

func (r *Repo) GetByBooking(ctx context.Context, bookingID string) (*Payment, error) {
	return r.scanOne(r.DB.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE booking_id=$1`, bookingID))
}

func (r *Repo) scanOne(row pgx.Row) (*Payment, error) {
	var p Payment
	var status string
	err := row.Scan(&p.ID, &p.BookingID, &p.UserID, &p.AmountCents, &p.Currency, &p.Method, &status,
		&p.ExternalTxID, &p.FailureReason, &p.CreatedAt, &p.CompletedAt, &p.RefundedAt, &p.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E("Payment.NotFound", "payment not found")
	}
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}

// Status updates guard on the version column; duplicate event delivery
// racing on the same row loses with a Conflict instead of clobbering.

func (r *Repo) MarkCompleted(ctx context.Context, p *Payment) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$2, external_tx_id=$3, completed_at=$4, version=version+1
		WHERE id=$1 AND version=$5`,
		p.ID, string(p.Status), p.ExternalTxID, p.CompletedAt, p.Version,
	)
	return versioned(ct.RowsAffected(), err)
}

func (r *Repo) MarkFailed(ctx context.Context, p *Payment) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$2, failure_reason=$3, version=version+1
		WHERE id=$1 AND version=$4`,
		p.ID, string(p.Status), p.FailureReason, p.Version,
	)
	return versioned(ct.RowsAffected(), err)
}

func (r *Repo) MarkRefunded(ctx context.Context, p *Payment) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$2, refunded_at=$3, failure_reason=$4, version=version+1
		WHERE id=$1 AND version=$5`,
		p.ID, string(p.Status), p.RefundedAt, p.FailureReason, p.Version,
	)
	return versioned(ct.RowsAffected(), err)
}

func versioned(rows int64, err error) error {
	if err != nil {
		return err
	}
	if rows != 1 {
		return domain.E("Payment.Conflict", "payment was modified concurrently")
	}
	return nil
}
