package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE:  c.runMigrate("up"),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE:  c.runMigrate("down"),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Apply pending seed files",
			Args:  cobra.NoArgs,
			RunE:  c.runMigrate("seed"),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE:  c.runMigrate("status"),
		},
	)
	return cmd
}

func (c *cli) runMigrate(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		_, backend, _, err := c.setup(cmd)
		if err != nil {
			return err
		}
		defer backend.Close()
		mgr, err := backend.Migrator()
		if err != nil {
			return err
		}
		ctx, cancel := c.withTimeout(cmd)
		defer cancel()

		out := cmd.OutOrStdout()
		switch action {
		case "up":
			applied, err := mgr.Up(ctx)
			for _, name := range applied {
				fmt.Fprintln(out, "applied", name)
			}
			return err
		case "down":
			name, err := mgr.Down(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "rolled back", name)
		case "seed":
			applied, err := mgr.Seed(ctx)
			for _, name := range applied {
				fmt.Fprintln(out, "seeded", name)
			}
			return err
		case "status":
			applied, pending, err := mgr.Status(ctx)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintln(out, "applied ", name)
			}
			for _, name := range pending {
				fmt.Fprintln(out, "pending ", name)
			}
		}
		return nil
	}
}
