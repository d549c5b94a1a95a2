package pg

import (
	"context"

	"legacyplanner.org/internal/appointment"
)

var _ appointment.Store = (*Store)(nil)

func (s *Store) CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	if s.db == nil {
		return appointment.Appointment{}, errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		insert into appointments (id, user_id, plan_id, title, description, location, starts_at, ends_at, attendee_email, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning created_at
	`, a.ID, a.UserID, nullIfEmpty(a.PlanID), a.Title, a.Description, a.Location,
		a.StartsAt, a.EndsAt, a.AttendeeEmail, a.CreatedAt).Scan(&a.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return appointment.Appointment{}, appointment.ErrInvalidInput
		}
		return appointment.Appointment{}, err
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, userID string) ([]appointment.Appointment, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, coalesce(plan_id, ''), title, description, location, starts_at, ends_at, attendee_email, created_at
		from appointments
		where user_id = $1
		order by starts_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []appointment.Appointment{}
	for rows.Next() {
		var a appointment.Appointment
		if err := rows.Scan(&a.ID, &a.UserID, &a.PlanID, &a.Title, &a.Description, &a.Location,
			&a.StartsAt, &a.EndsAt, &a.AttendeeEmail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
