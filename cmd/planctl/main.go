// Command planctl administers a planner deployment: schema migrations, plan
// resolution and entitlement inspection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"legacyplanner.org/internal/app"
	"legacyplanner.org/internal/config"
	"legacyplanner.org/internal/obs"
)

type cli struct {
	dsn     string
	timeout time.Duration
	verbose bool

	// loadConfig is swapped in tests.
	loadConfig func() (*config.Config, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{loadConfig: config.Load}
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Administer the end-of-life planner backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.dsn, "dsn", "", "PostgreSQL DSN (default: LEGACY_PG_DSN)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "Operation timeout")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		c.migrateCmd(),
		c.resolveCmd(),
		c.accessCmd(),
		c.grantCmd(),
		c.sectionsCmd(),
		c.rolesCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "planctl:", err)
		os.Exit(1)
	}
}

// setup loads configuration and opens the backend named by --dsn or the environment.
func (c *cli) setup(cmd *cobra.Command) (*config.Config, *app.Backend, *zap.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if c.dsn != "" {
		cfg.Database.DSN = c.dsn
	}
	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}
	log := obs.NewLogger(cmd.ErrOrStderr(), level)
	obs.SetLogger(log)

	backend, err := app.OpenBackend(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, backend, log, nil
}

func (c *cli) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
