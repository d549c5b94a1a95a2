// Package app turns a Config into the stores and services shared by the API
// server and planctl.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"

	"go.uber.org/zap"

	"legacyplanner.org/internal/appointment"
	"legacyplanner.org/internal/billing"
	"legacyplanner.org/internal/config"
	"legacyplanner.org/internal/entitlement"
	"legacyplanner.org/internal/kb"
	"legacyplanner.org/internal/mail"
	"legacyplanner.org/internal/migrate"
	"legacyplanner.org/internal/plan"
	"legacyplanner.org/internal/sections"
	"legacyplanner.org/internal/store/pg"
	"legacyplanner.org/migrations"
)

// ErrNoDatabase is returned by operations that need PostgreSQL when no DSN is configured.
var ErrNoDatabase = errors.New("no database configured")

// Backend is the set of stores behind the services. DB is nil when the
// in-memory stores are in use.
type Backend struct {
	DB           *sql.DB
	Plans        plan.Store
	Subs         entitlement.Store
	Appointments appointment.Store
	KB           kb.Store

	pg *pg.Store
}

// OpenBackend connects to PostgreSQL when cfg has a DSN and falls back to
// in-memory stores otherwise.
func OpenBackend(cfg config.DatabaseConfig) (*Backend, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return &Backend{
			Plans:        plan.NewInMemory(),
			Subs:         entitlement.NewInMemory(),
			Appointments: appointment.NewInMemory(),
			KB:           kb.NewInMemory(nil, nil),
		}, nil
	}
	store, err := pg.Open(cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return &Backend{
		DB:           store.DB(),
		Plans:        store,
		Subs:         store,
		Appointments: store,
		KB:           store,
		pg:           store,
	}, nil
}

// Persistent reports whether the backend is PostgreSQL.
func (b *Backend) Persistent() bool { return b.pg != nil }

// PG returns the PostgreSQL store, or ErrNoDatabase.
func (b *Backend) PG() (*pg.Store, error) {
	if b.pg == nil {
		return nil, ErrNoDatabase
	}
	return b.pg, nil
}

// Migrator returns a migration manager over the embedded schema.
func (b *Backend) Migrator() (*migrate.Manager, error) {
	if b.DB == nil {
		return nil, ErrNoDatabase
	}
	return migrate.NewManager(b.DB, migrations.FS, migrations.Dir, migrations.SeedsDir), nil
}

// Migrate applies pending migrations and seeds.
func (b *Backend) Migrate(ctx context.Context, log *zap.Logger) error {
	m, err := b.Migrator()
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	seeded, err := m.Seed(ctx)
	if err != nil {
		return err
	}
	log.Info("database migrated", zap.Strings("migrations", applied), zap.Strings("seeds", seeded))
	return nil
}

func (b *Backend) Close() error {
	if b.pg == nil {
		return nil
	}
	return b.pg.Close()
}

// Services are the domain services built over a Backend. Billing is nil when
// no payment provider key is configured.
type Services struct {
	Registry     *sections.Registry
	Catalog      *entitlement.Catalog
	Plans        *plan.Service
	Resolver     *plan.Resolver
	Access       *entitlement.Resolver
	Billing      *billing.Service
	Mail         *mail.Service
	Appointments *appointment.Service
	KB           *kb.Service
}

func NewServices(cfg *config.Config, b *Backend, log *zap.Logger) (*Services, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Services{
		Registry: sections.Default(),
		Catalog:  entitlement.DefaultCatalog(),
	}
	var err error
	if s.Plans, err = plan.NewService(b.Plans, s.Registry, plan.WithLogger(log)); err != nil {
		return nil, err
	}
	if s.Resolver, err = plan.NewResolver(b.Plans, plan.WithLogger(log)); err != nil {
		return nil, err
	}
	if s.Access, err = entitlement.NewResolver(b.Subs, s.Catalog, entitlement.WithLogger(log)); err != nil {
		return nil, err
	}
	if key := strings.TrimSpace(cfg.Billing.StripeKey); key != "" {
		provider, err := billing.NewStripeProvider(key)
		if err != nil {
			return nil, err
		}
		s.Billing, err = billing.NewService(provider, s.Catalog, b.Subs, billing.URLs{
			Success: cfg.Billing.SuccessURL,
			Cancel:  cfg.Billing.CancelURL,
			Return:  cfg.Billing.ReturnURL,
		}, log)
		if err != nil {
			return nil, err
		}
	}
	sender, err := newSender(cfg.Mail, log)
	if err != nil {
		return nil, err
	}
	if s.Mail, err = mail.NewService(sender, cfg.Mail.From, cfg.Mail.SongOrderTo, s.Registry); err != nil {
		return nil, err
	}
	if s.Appointments, err = appointment.NewService(b.Appointments, organizer(cfg.Mail.From)); err != nil {
		return nil, err
	}
	if s.KB, err = kb.NewService(b.KB); err != nil {
		return nil, err
	}
	return s, nil
}

func newSender(cfg config.MailConfig, log *zap.Logger) (mail.Sender, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return mail.LogSender{Log: log}, nil
	}
	return mail.NewHTTPSender(cfg.APIURL, cfg.APIKey, nil)
}

// organizer extracts the bare address from a "Name <addr>" sender.
func organizer(from string) string {
	addr, err := netmail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}
