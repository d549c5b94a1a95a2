package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"legacyplanner.org/internal/ids"
	"legacyplanner.org/internal/plan"
)

var _ plan.Store = (*Store)(nil)

var planColumns = strings.Join(append(append(
	[]string{"id", "org_id", "owner_user_id", "percent_complete", "prepared_for"},
	plan.NotesFields()...),
	"payload", "created_at", "updated_at"), ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (plan.Plan, error) {
	fields := plan.NotesFields()
	notes := make([]string, len(fields))
	var (
		p   plan.Plan
		raw []byte
	)
	dest := []any{&p.ID, &p.OrgID, &p.OwnerUserID, &p.PercentComplete, &p.PreparedFor}
	for i := range notes {
		dest = append(dest, &notes[i])
	}
	dest = append(dest, &raw, &p.CreatedAt, &p.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plan.Plan{}, plan.ErrNotFound
		}
		return plan.Plan{}, err
	}
	p.Notes = make(map[string]string, len(fields))
	for i, f := range fields {
		if notes[i] != "" {
			p.Notes[f] = notes[i]
		}
	}
	payload, err := decodeObject(raw)
	if err != nil {
		return plan.Plan{}, err
	}
	p.Payload = payload
	return p, nil
}

func (s *Store) OwnerOrganizations(ctx context.Context, userID string) ([]plan.Organization, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	return ownerOrganizations(ctx, s.db, userID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ownerOrganizations(ctx context.Context, q queryer, userID string) ([]plan.Organization, error) {
	rows, err := q.QueryContext(ctx, `
		select o.id, o.name, o.created_at
		from organizations o
		join memberships m on m.org_id = o.id
		where m.user_id = $1 and m.role = $2
		order by o.created_at, o.id
	`, userID, plan.OwnerRole)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []plan.Organization
	for rows.Next() {
		var org plan.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (s *Store) FindPlan(ctx context.Context, orgID, ownerUserID string) (plan.Plan, error) {
	if s.db == nil {
		return plan.Plan{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx,
		`select `+planColumns+` from plans where org_id = $1 and owner_user_id = $2`,
		orgID, ownerUserID)
	return scanPlan(row)
}

// EnsurePlan serializes on a per-user advisory lock so concurrent first
// visits create a single organization and plan.
func (s *Store) EnsurePlan(ctx context.Context, userID string) (plan.Organization, plan.Plan, error) {
	if s.db == nil {
		return plan.Organization{}, plan.Plan{}, errNoDB
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return plan.Organization{}, plan.Plan{}, fmt.Errorf("%w: user id is required", plan.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return plan.Organization{}, plan.Plan{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return plan.Organization{}, plan.Plan{}, err
	}

	owned, err := ownerOrganizations(ctx, tx, userID)
	if err != nil {
		return plan.Organization{}, plan.Plan{}, err
	}

	var org plan.Organization
	switch len(owned) {
	case 0:
		org.ID = ids.New()
		if err := tx.QueryRowContext(ctx, `
			insert into organizations (id) values ($1)
			returning name, created_at
		`, org.ID).Scan(&org.Name, &org.CreatedAt); err != nil {
			return plan.Organization{}, plan.Plan{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into memberships (org_id, user_id, role) values ($1, $2, $3)
		`, org.ID, userID, plan.OwnerRole); err != nil {
			return plan.Organization{}, plan.Plan{}, err
		}
	case 1:
		org = owned[0]
	default:
		return plan.Organization{}, plan.Plan{}, plan.ErrMultipleOwnerOrgs
	}

	p, err := createPlan(ctx, tx, org.ID, userID)
	if err != nil {
		return plan.Organization{}, plan.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return plan.Organization{}, plan.Plan{}, err
	}
	return org, p, nil
}

func (s *Store) CreatePlan(ctx context.Context, orgID, ownerUserID string) (plan.Plan, error) {
	if s.db == nil {
		return plan.Plan{}, errNoDB
	}
	if strings.TrimSpace(orgID) == "" || strings.TrimSpace(ownerUserID) == "" {
		return plan.Plan{}, fmt.Errorf("%w: org id and owner are required", plan.ErrInvalidInput)
	}
	return createPlan(ctx, s.db, orgID, ownerUserID)
}

type execQueryer interface {
	queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// createPlan relies on the plans_org_owner unique index: a losing concurrent
// insert becomes a no-op and the select returns the winner's row.
func createPlan(ctx context.Context, q execQueryer, orgID, ownerUserID string) (plan.Plan, error) {
	if _, err := q.ExecContext(ctx, `
		insert into plans (id, org_id, owner_user_id) values ($1, $2, $3)
		on conflict (org_id, owner_user_id) do nothing
	`, ids.New(), orgID, ownerUserID); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return plan.Plan{}, fmt.Errorf("%w: organization %s", plan.ErrNotFound, orgID)
		}
		return plan.Plan{}, err
	}
	row := q.QueryRowContext(ctx,
		`select `+planColumns+` from plans where org_id = $1 and owner_user_id = $2`,
		orgID, ownerUserID)
	return scanPlan(row)
}

func (s *Store) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	if s.db == nil {
		return plan.Plan{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+planColumns+` from plans where id = $1`, planID)
	return scanPlan(row)
}

func (s *Store) GetProfile(ctx context.Context, planID string) (plan.Profile, error) {
	if s.db == nil {
		return plan.Profile{}, errNoDB
	}
	var (
		p   = plan.Profile{PlanID: planID}
		raw []byte
	)
	err := s.db.QueryRowContext(ctx,
		`select data, updated_at from plan_profiles where plan_id = $1`, planID).
		Scan(&raw, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return plan.Profile{}, plan.ErrNotFound
	}
	if err != nil {
		return plan.Profile{}, err
	}
	if p.Data, err = decodeObject(raw); err != nil {
		return plan.Profile{}, err
	}
	return p, nil
}

// SaveProfile merges data into the stored profile, creating it on first write.
func (s *Store) SaveProfile(ctx context.Context, planID string, data map[string]any) (plan.Profile, error) {
	if s.db == nil {
		return plan.Profile{}, errNoDB
	}
	body, err := encodeJSON(data)
	if err != nil {
		return plan.Profile{}, fmt.Errorf("%w: %v", plan.ErrInvalidInput, err)
	}
	var (
		p   = plan.Profile{PlanID: planID}
		raw []byte
	)
	err = s.db.QueryRowContext(ctx, `
		insert into plan_profiles (plan_id, data, updated_at)
		values ($1, $2::jsonb, now())
		on conflict (plan_id) do update
		set data = plan_profiles.data || excluded.data, updated_at = now()
		returning data, updated_at
	`, planID, body).Scan(&raw, &p.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return plan.Profile{}, plan.ErrNotFound
		}
		return plan.Profile{}, err
	}
	if p.Data, err = decodeObject(raw); err != nil {
		return plan.Profile{}, err
	}
	return p, nil
}

// Collection names are interpolated into SQL, so they are checked against the
// fixed list first.
func collectionTable(collection string) (string, error) {
	if !plan.IsCollection(collection) {
		return "", fmt.Errorf("%w: unknown collection %q", plan.ErrInvalidInput, collection)
	}
	return collection, nil
}

func (s *Store) ListRecords(ctx context.Context, collection, planID string) ([]plan.Record, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, plan_id, data, created_at from `+table+` where plan_id = $1 order by created_at, id`,
		planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []plan.Record{}
	for rows.Next() {
		var (
			r   plan.Record
			raw []byte
		)
		if err := rows.Scan(&r.ID, &r.PlanID, &raw, &r.CreatedAt); err != nil {
			return nil, err
		}
		if r.Data, err = decodeObject(raw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AddRecord(ctx context.Context, collection, planID string, data map[string]any) (plan.Record, error) {
	if s.db == nil {
		return plan.Record{}, errNoDB
	}
	table, err := collectionTable(collection)
	if err != nil {
		return plan.Record{}, err
	}
	body, err := encodeJSON(data)
	if err != nil {
		return plan.Record{}, fmt.Errorf("%w: %v", plan.ErrInvalidInput, err)
	}
	r := plan.Record{ID: ids.New(), PlanID: planID, Data: data}
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	err = s.db.QueryRowContext(ctx,
		`insert into `+table+` (id, plan_id, data) values ($1, $2, $3::jsonb) returning created_at`,
		r.ID, planID, body).Scan(&r.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return plan.Record{}, plan.ErrNotFound
		}
		return plan.Record{}, err
	}
	return r, nil
}

// UpdatePlan applies the partial update in one statement. Payload sections are
// merged key by key into whatever object is already stored.
func (s *Store) UpdatePlan(ctx context.Context, planID string, upd plan.PlanUpdate) (plan.Plan, error) {
	if s.db == nil {
		return plan.Plan{}, errNoDB
	}
	if upd.Empty() {
		return s.GetPlan(ctx, planID)
	}

	args := []any{planID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var sets []string
	if upd.PercentComplete != nil {
		sets = append(sets, "percent_complete = "+arg(*upd.PercentComplete))
	}
	if upd.PreparedFor != nil {
		sets = append(sets, "prepared_for = "+arg(*upd.PreparedFor))
	}
	for _, field := range sortedKeys(upd.Notes) {
		if !plan.IsNotesField(field) {
			return plan.Plan{}, fmt.Errorf("%w: unknown notes field %q", plan.ErrInvalidInput, field)
		}
		sets = append(sets, field+" = "+arg(upd.Notes[field]))
	}
	if len(upd.Payload) > 0 {
		expr := "payload"
		for _, section := range sortedKeys(upd.Payload) {
			body, err := encodeJSON(upd.Payload[section])
			if err != nil {
				return plan.Plan{}, fmt.Errorf("%w: %v", plan.ErrInvalidInput, err)
			}
			key := arg(section)
			expr = fmt.Sprintf(
				"%s || jsonb_build_object(%s::text, case when jsonb_typeof(payload->%s) = 'object' then payload->%s else '{}'::jsonb end || %s::jsonb)",
				expr, key, key, key, arg(body))
		}
		sets = append(sets, "payload = "+expr)
	}
	sets = append(sets, "updated_at = now()")

	row := s.db.QueryRowContext(ctx,
		`update plans set `+strings.Join(sets, ", ")+` where id = $1 returning `+planColumns,
		args...)
	p, err := scanPlan(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrCheckViolation {
			return plan.Plan{}, fmt.Errorf("%w: %s", plan.ErrInvalidInput, pgErr.Message)
		}
		return plan.Plan{}, err
	}
	return p, nil
}

func (s *Store) SetPercentComplete(ctx context.Context, planID string, pct int) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx,
		`update plans set percent_complete = $2, updated_at = now() where id = $1`, planID, pct)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return plan.ErrNotFound
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
