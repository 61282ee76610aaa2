package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/talgya/gridworks/internal/batch"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/world"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			st, err := newClient().Status(ctx)
			if err != nil {
				return must(err)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func pricesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Show the market price table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			table, err := newClient().Prices(ctx)
			if err != nil {
				return must(err)
			}
			printPrices(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func entitiesCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List placed buildings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			views, err := newClient().Entities(ctx, catalog.BuildingKey(typ))
			if err != nil {
				return must(err)
			}
			printEntities(cmd.OutOrStdout(), views)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only this building type")
	return cmd
}

func entityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <q,r>",
		Short: "Inspect one building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := world.ParseKey(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			v, err := newClient().Entity(ctx, g)
			if err != nil {
				return must(err)
			}
			printEntity(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func buildingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buildings",
		Short: "Show the building catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			list, err := newClient().Buildings(ctx)
			if err != nil {
				return must(err)
			}
			printBuildings(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func policiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Show policies and whether they are active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			list, err := newClient().Policies(ctx)
			if err != nil {
				return must(err)
			}
			printPolicies(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func buildCmd() *cobra.Command {
	var allowDefer bool
	cmd := &cobra.Command{
		Use:   "build <type> <q,r>",
		Short: "Place a construction site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := world.ParseKey(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			rc, err := newClient().Build(ctx, g, catalog.BuildingKey(args[0]), allowDefer)
			if err != nil {
				return must(err)
			}
			return printReceipt(cmd.OutOrStdout(), "build "+args[0]+" at "+g.Key(), rc)
		},
	}
	cmd.Flags().BoolVar(&allowDefer, "defer", false, "wait for funds instead of failing")
	return cmd
}

func sellBuildingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sell-building <q,r>",
		Short: "Sell a building for a refund",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := world.ParseKey(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			rc, err := newClient().SellBuilding(ctx, g)
			if err != nil {
				return must(err)
			}
			return printReceipt(cmd.OutOrStdout(), "sell building at "+g.Key(), rc)
		},
	}
}

func unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <type>",
		Short: "Research a building type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			rc, err := newClient().Unlock(ctx, catalog.BuildingKey(args[0]))
			if err != nil {
				return must(err)
			}
			return printReceipt(cmd.OutOrStdout(), "unlock "+args[0], rc)
		},
	}
}

func policyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy <key> <on|off>",
		Short: "Activate or deactivate a policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[1] {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			rc, err := newClient().TogglePolicy(ctx, args[0], on)
			if err != nil {
				return must(err)
			}
			return printReceipt(cmd.OutOrStdout(), "policy "+args[0]+" "+args[1], rc)
		},
	}
}

// tradeCmd builds the sell and buy commands, which differ only in verb.
func tradeCmd(verb string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <resource> <quantity>",
		Short: "Trade a resource with the market (" + verb + ")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("bad quantity %q", args[1])
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			c := newClient()
			res := catalog.ResourceKey(args[0])
			trade := c.Sell
			if verb == "buy" {
				trade = c.Buy
			}
			rc, err := trade(ctx, res, qty)
			if err != nil {
				return must(err)
			}
			return printReceipt(cmd.OutOrStdout(), verb+" "+args[1]+" "+args[0], rc)
		},
	}
}

func batchCmd() *cobra.Command {
	var (
		mode  string
		level int
	)
	cmd := &cobra.Command{
		Use:   "batch <upgrade|downgrade|sell> <q,r>",
		Short: "Apply an action to a group of buildings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := batch.ParseKind(args[0])
			if err != nil {
				return err
			}
			m, err := batch.ParseMode(mode)
			if err != nil {
				return err
			}
			g, err := world.ParseKey(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			res, err := newClient().Batch(ctx, g, m, kind, level)
			if err != nil {
				return must(err)
			}
			printBatch(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "single", "selection: single, all, cluster, adjacent")
	cmd.Flags().IntVar(&level, "level", 0, "target level for upgrade and downgrade")
	return cmd
}

func speedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "speed <factor>",
		Short: "Change the simulation speed (0 pauses)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("bad speed %q", args[0])
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := newClient().SetSpeed(ctx, f); err != nil {
				return must(err)
			}
			okColor.Fprintf(cmd.OutOrStdout(), "✓ speed set to %g\n", f)
			return nil
		},
	}
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Save the session now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			tick, err := newClient().Snapshot(ctx)
			if err != nil {
				return must(err)
			}
			okColor.Fprintf(cmd.OutOrStdout(), "✓ saved at tick %d\n", tick)
			return nil
		},
	}
}
