package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventsettlement/internal/domain"
)

const registrationColumns = `id, user_id, event_id, roll_number, contact, status, payment_method, payment_ref, notification_sent, created_at, updated_at`

type registrationRepository struct {
	DB *sql.DB
}

// NewRegistrationRepository returns the Postgres registration ledger.
func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var status, method string
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.RollNumber, &reg.Contact,
		&status, &method, &reg.PaymentRef, &reg.NotificationSent, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Status = domain.RegistrationStatus(status)
	reg.PaymentMethod = domain.PaymentMethod(method)
	return reg, nil
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		// The unique (user_id, event_id) constraint settles concurrent duplicates.
		query := `
			INSERT INTO registrations (id, user_id, event_id, roll_number, contact, status, payment_method, payment_ref, notification_sent, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (user_id, event_id) DO NOTHING
			RETURNING id
		`
		var id string
		err := tx.QueryRowContext(ctx, query,
			reg.ID, reg.UserID, reg.EventID, reg.RollNumber, reg.Contact,
			string(reg.Status), string(reg.PaymentMethod), reg.PaymentRef, reg.NotificationSent,
			reg.CreatedAt, reg.UpdatedAt,
		).Scan(&id)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows), isPQCode(err, pqUniqueViolation):
				return domain.ErrAlreadyRegistered
			case isPQCode(err, pqForeignKeyViolation):
				return domain.ErrNotFound
			}
			return fmt.Errorf("insert registration: %w", err)
		}

		if !reg.Status.Counted() {
			return nil
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE event_info SET registered_count = registered_count + 1
			WHERE event_id = $1 AND (max_participants IS NULL OR registered_count < max_participants)
		`, reg.EventID)
		if err != nil {
			return fmt.Errorf("increment registered count: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrEventFull
		}
		return nil
	})
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 AND user_id = $2`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) List(ctx context.Context, page *domain.PaginationParams) (domain.Paged[*domain.Registration], error) {
	if page == nil {
		regs, err := r.queryRegistrations(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY created_at DESC, id`)
		if err != nil {
			return domain.Paged[*domain.Registration]{}, err
		}
		return domain.Paged[*domain.Registration]{Items: regs, Total: len(regs)}, nil
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&total); err != nil {
		return domain.Paged[*domain.Registration]{}, err
	}
	regs, err := r.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		page.PageSize, page.Offset())
	if err != nil {
		return domain.Paged[*domain.Registration]{}, err
	}
	return domain.Paged[*domain.Registration]{Items: regs, Total: total}, nil
}

func (r *registrationRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	return r.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (r *registrationRepository) ListStalePending(ctx context.Context, before time.Time) ([]*domain.Registration, error) {
	return r.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE status = 'Pending' AND created_at < $1 ORDER BY created_at`,
		before)
}

func (r *registrationRepository) queryRegistrations(ctx context.Context, query string, args ...any) ([]*domain.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *registrationRepository) SetPaymentRef(ctx context.Context, id, ref string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE registrations SET payment_ref = $1, updated_at = NOW() WHERE id = $2`, ref, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *registrationRepository) MarkPaid(ctx context.Context, id string, method domain.PaymentMethod) (bool, error) {
	changed := false
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		// Row lock serialises duplicate confirm deliveries for the same registration.
		var status, eventID string
		err := tx.QueryRowContext(ctx,
			`SELECT status, event_id FROM registrations WHERE id = $1 FOR UPDATE`, id).
			Scan(&status, &eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("lock registration: %w", err)
		}
		if domain.RegistrationStatus(status) != domain.StatusPending {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE registrations SET status = 'Paid', payment_method = $1, updated_at = NOW() WHERE id = $2`,
			string(method), id); err != nil {
			return fmt.Errorf("mark registration paid: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE event_info SET registered_count = registered_count + 1 WHERE event_id = $1`, eventID)
		if err != nil {
			return fmt.Errorf("increment registered count: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (r *registrationRepository) DeletePending(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1 AND status = 'Pending'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *registrationRepository) Unregister(ctx context.Context, userID, eventID string) (*domain.Registration, error) {
	var removed *domain.Registration
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		reg, err := scanRegistration(tx.QueryRowContext(ctx,
			`DELETE FROM registrations WHERE user_id = $1 AND event_id = $2 RETURNING `+registrationColumns,
			userID, eventID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotRegistered
			}
			return fmt.Errorf("delete registration: %w", err)
		}

		if reg.Status.Counted() {
			res, err := tx.ExecContext(ctx,
				`UPDATE event_info SET registered_count = registered_count - 1 WHERE event_id = $1`, eventID)
			if err != nil {
				return fmt.Errorf("decrement registered count: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return domain.ErrNotRegistered
			}
		}
		removed = reg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *registrationRepository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]*domain.ReminderCandidate, error) {
	query := `
		SELECT r.id, r.user_id, r.contact, r.roll_number, e.id, e.title, ei.start_date
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		JOIN event_info ei ON ei.event_id = r.event_id
		WHERE r.notification_sent = FALSE
		  AND r.status IN ('Free', 'Paid')
		  AND ei.start_date > $1 AND ei.start_date <= $2
		ORDER BY ei.start_date
	`
	rows, err := r.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.ReminderCandidate, 0)
	for rows.Next() {
		c := &domain.ReminderCandidate{}
		if err := rows.Scan(&c.RegistrationID, &c.UserID, &c.Contact, &c.RollNumber, &c.EventID, &c.EventTitle, &c.StartDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *registrationRepository) MarkNotificationSent(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE registrations SET notification_sent = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
