package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"legacyplanner.org/internal/app"
)

func (c *cli) resolveCmd() *cobra.Command {
	var create bool
	cmd := &cobra.Command{
		Use:   "resolve <user-id>",
		Short: "Resolve a user's active plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, backend, log, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer backend.Close()
			svc, err := app.NewServices(cfg, backend, log)
			if err != nil {
				return err
			}
			ctx, cancel := c.withTimeout(cmd)
			defer cancel()

			res := svc.Resolver.ResolveActivePlan(ctx, args[0], create)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("no active plan: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "Create the organization and plan when missing")
	return cmd
}

func (c *cli) accessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "access <user-id>",
		Short: "Show a user's entitlement flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, backend, log, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer backend.Close()
			svc, err := app.NewServices(cfg, backend, log)
			if err != nil {
				return err
			}
			ctx, cancel := c.withTimeout(cmd)
			defer cancel()
			return printJSON(cmd.OutOrStdout(), svc.Access.Resolve(ctx, args[0]).Flags())
		},
	}
}

func (c *cli) grantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <user-id> <role>",
		Short: "Grant a privileged role such as admin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, _, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer backend.Close()
			store, err := backend.PG()
			if err != nil {
				return err
			}
			ctx, cancel := c.withTimeout(cmd)
			defer cancel()
			if err := store.GrantRole(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s\n", args[1], args[0])
			return nil
		},
	}
}
