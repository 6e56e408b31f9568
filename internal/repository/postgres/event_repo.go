package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventsettlement/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT e.id, e.title, e.owner_id, e.venue_id, ei.start_date, ei.end_date, ei.registration_deadline,
		       ei.registration_fee, ei.max_participants, ei.registered_count
		FROM events e
		JOIN event_info ei ON ei.event_id = e.id
		WHERE e.id = $1
	`
	e := &domain.Event{}
	var venueNull sql.NullString
	var endNull, deadlineNull sql.NullTime
	var maxNull sql.NullInt64
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.OwnerID, &venueNull, &e.StartDate, &endNull, &deadlineNull,
		&e.RegistrationFee, &maxNull, &e.RegisteredCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if venueNull.Valid {
		e.VenueID = &venueNull.String
	}
	if endNull.Valid {
		e.EndDate = &endNull.Time
	}
	if deadlineNull.Valid {
		e.RegistrationDeadline = &deadlineNull.Time
	}
	if maxNull.Valid {
		m := int(maxNull.Int64)
		e.MaxParticipants = &m
	}
	return e, nil
}

// cascadeDeletes lists the event's dependent rows in the order they are removed.
var cascadeDeletes = []struct {
	name  string
	query string
}{
	{"registrations", `DELETE FROM registrations WHERE event_id = $1`},
	{"event images", `DELETE FROM event_images WHERE event_id = $1`},
	{"event sponsors", `DELETE FROM event_sponsors WHERE event_id = $1`},
	{"event info", `DELETE FROM event_info WHERE event_id = $1`},
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, step := range cascadeDeletes {
			if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
