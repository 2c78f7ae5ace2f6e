package booking

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, b *Booking) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO bookings(id, resource_id, user_id, start_time, end_time, total_cents, currency, status, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0)`,
		b.ID, b.ResourceID, b.UserID, b.Period.Start, b.Period.End,
		b.TotalCents, b.Currency, string(b.Status), b.CreatedAt,
	)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id, resource_id, user_id, start_time, end_time, total_cents, currency, status,
		       COALESCE(cancel_reason,''), created_at, confirmed_at, cancelled_at, version
		FROM bookings WHERE id=$1`, id).Scan(
		&b.ID, &b.ResourceID, &b.UserID, &b.Period.Start, &b.Period.End, &b.TotalCents, &b.Currency, &status,
		&b.CancelReason, &b.CreatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E("Booking.NotFound", "booking not found: "+id)
	}
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	return &b, nil
}

// Update persists a status transition. The version guard turns a race
// from duplicate event delivery into a Conflict instead of a lost write.
func (r *Repo) Update(ctx context.Context, b *Booking) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE bookings SET status=$2, cancel_reason=$3, confirmed_at=$4, cancelled_at=$5, version=version+1
		WHERE id=$1 AND version=$6`,
		b.ID, string(b.Status), b.CancelReason, b.ConfirmedAt, b.CancelledAt, b.Version,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return domain.E("Booking.Conflict", "booking was modified concurrently")
	}
	b.Version++
	return nil
}
