package resource

import (
	"context"
	"errors"

	"time"

	"github.com/ariefcatur/go-booking-saga.git/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, res *Resource) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO resources(id, name, address, city, country, min_people, max_people, price_per_hour, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		res.ID, res.Name, res.Location.Address, res.Location.City, res.Location.Country,
		res.Capacity.Min, res.Capacity.Max, res.PricePerHourCents, string(res.Status), res.CreatedAt,
	)
	return err
}

// Get loads a resource together with its reserved/blocked slots.
func (r *Repo) Get(ctx context.Context, id string) (*Resource, error) {
	var res Resource
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, address, city, country, min_people, max_people, price_per_hour, status, created_at
		FROM resources WHERE id=$1`, id).Scan(
		&res.ID, &res.Name, &res.Location.Address, &res.Location.City, &res.Location.Country,
		&res.Capacity.Min, &res.Capacity.Max, &res.PricePerHourCents, &status, &res.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E("Resource.NotFound", "resource not found: "+id)
	}
	if err != nil {
		return nil, err
	}
	res.Status = Status(status)

	rows, err := r.DB.Query(ctx, `
		SELECT start_time, end_time, status FROM resource_slots
		WHERE resource_id=$1 ORDER BY start_time`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s TimeSlot
		var ss string
		if err := rows.Scan(&s.Start, &s.End, &ss); err != nil {
			return nil, err
		}
		s.Status = SlotStatus(ss)
		res.Slots = append(res.Slots, s)
	}
	return &res, rows.Err()
}

func (r *Repo) AddSlot(ctx context.Context, resourceID, reservationID string, s TimeSlot) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO resource_slots(reservation_id, resource_id, start_time, end_time, status)
		VALUES ($1,$2,$3,$4,$5)`,
		reservationID, resourceID, s.Start, s.End, string(s.Status),
	)
	return err
}

// RemoveSlot deletes the reserved slot matching [start,end) exactly.
// Returns false when nothing matched (already released).
func (r *Repo) RemoveSlot(ctx context.Context, resourceID string, start, end time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		DELETE FROM resource_slots
		WHERE resource_id=$1 AND start_time=$2 AND end_time=$3 AND status='RESERVED'`,
		resourceID, start, end,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
