package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"legacyplanner.org/internal/entitlement"
	"legacyplanner.org/internal/ids"
)

var _ entitlement.Store = (*Store)(nil)

func (s *Store) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`select 1 from user_roles where user_id = $1 and role = $2`, userID, role).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GrantRole records a privileged role. Granting twice is a no-op.
func (s *Store) GrantRole(ctx context.Context, userID, role string) error {
	if s.db == nil {
		return errNoDB
	}
	userID, role = strings.TrimSpace(userID), strings.TrimSpace(role)
	if userID == "" || role == "" {
		return fmt.Errorf("%w: user id and role are required", entitlement.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role) values ($1, $2)
		on conflict (user_id, role) do nothing
	`, userID, role)
	return err
}

func (s *Store) Subscriptions(ctx context.Context, userID string) ([]entitlement.Subscription, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, lookup_key, status, customer_id, expires_at, created_at, updated_at
		from subscriptions
		where user_id = $1
		order by created_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entitlement.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) UpsertSubscription(ctx context.Context, sub entitlement.Subscription) (entitlement.Subscription, error) {
	if s.db == nil {
		return entitlement.Subscription{}, errNoDB
	}
	sub.UserID = strings.TrimSpace(sub.UserID)
	sub.LookupKey = strings.TrimSpace(sub.LookupKey)
	if sub.UserID == "" || sub.LookupKey == "" {
		return entitlement.Subscription{}, entitlement.ErrInvalidInput
	}
	var expires sql.NullTime
	if sub.ExpiresAt != nil {
		expires = sql.NullTime{Time: sub.ExpiresAt.UTC(), Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		insert into subscriptions (id, user_id, lookup_key, status, customer_id, expires_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (user_id, lookup_key) do update
		set status = excluded.status,
		    customer_id = excluded.customer_id,
		    expires_at = excluded.expires_at,
		    updated_at = now()
		returning id, user_id, lookup_key, status, customer_id, expires_at, created_at, updated_at
	`, ids.New(), sub.UserID, sub.LookupKey, sub.Status, sub.CustomerID, expires)
	return scanSubscription(row)
}

func scanSubscription(row rowScanner) (entitlement.Subscription, error) {
	var (
		sub     entitlement.Subscription
		expires sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.LookupKey, &sub.Status, &sub.CustomerID,
		&expires, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entitlement.Subscription{}, entitlement.ErrNotFound
		}
		return entitlement.Subscription{}, err
	}
	if expires.Valid {
		t := expires.Time.In(time.UTC)
		sub.ExpiresAt = &t
	}
	return sub, nil
}
