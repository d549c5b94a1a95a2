package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"legacyplanner.org/internal/entitlement"
	"legacyplanner.org/internal/sections"
)

func (c *cli) sectionsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "List the planner sections in navigation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := sections.Default()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), reg.Sections())
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROUTE\tGROUP\tCOLLECTIONS")
			for _, s := range reg.Sections() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Route, s.Group, strings.Join(s.Collections, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (c *cli) rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles [lookup-key]",
		Short: "Show the roles granted by each product",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := entitlement.DefaultCatalog()
			keys := catalog.LookupKeys()
			if len(args) == 1 {
				if !catalog.Known(args[0]) {
					return fmt.Errorf("unknown lookup key %q", args[0])
				}
				keys = args
			}
			out := cmd.OutOrStdout()
			for _, key := range keys {
				fmt.Fprintf(out, "%s: %s\n", key, strings.Join(catalog.RolesForLookupKey(key), ", "))
			}
			return nil
		},
	}
}
