package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/talgya/gridworks/internal/batch"
	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/client"
	"github.com/talgya/gridworks/internal/engine"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
)

func money(f float64) string {
	return "$" + humanize.CommafWithDigits(f, 2)
}

func qty(f float64) string {
	return humanize.CommafWithDigits(f, 2)
}

func amounts(a catalog.Amounts) string {
	if len(a) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", qty(a[catalog.ResourceKey(k)]), k))
	}
	return strings.Join(parts, ", ")
}

func printStatus(w io.Writer, st *client.Status) {
	titleColor.Fprintf(w, "Session %s\n", st.SessionID)
	fmt.Fprintf(w, "  Tick:      %d (%s)\n", st.Tick, st.GameTime)
	fmt.Fprintf(w, "  Speed:     %gx\n", st.Speed)
	fmt.Fprintf(w, "  Profile:   %s\n", st.Profile)
	if len(st.Policies) > 0 {
		fmt.Fprintf(w, "  Policies:  %s\n", strings.Join(st.Policies, ", "))
	}
	fmt.Fprintf(w, "  Cash:      %s\n", money(st.Cash))
	fmt.Fprintf(w, "  Buildings: %d (%d deliveries in flight)\n", st.Entities, st.InFlight)

	power := okColor
	if st.Power.Usage > st.Power.Supply+st.Power.BankDraw {
		power = warnColor
	}
	power.Fprintf(w, "  Power:     %s supply / %s usage, %s stored\n",
		qty(st.Power.Supply), qty(st.Power.Usage), qty(st.Power.Reserve))

	table := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Status", "Count"}))
	names := make([]string, 0, len(st.Statuses))
	for k := range st.Statuses {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		_ = table.Append([]string{k, humanize.Comma(int64(st.Statuses[k]))})
	}
	_ = table.Render()
}

func printPrices(w io.Writer, prices []engine.PriceView) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Resource", "Price", "Base", "Net", "Rate/s", "Depot", "Auto-sell"}),
	)
	for _, p := range prices {
		auto := ""
		if p.AutoSell {
			auto = "yes"
		}
		_ = table.Append([]string{
			string(p.Resource),
			money(p.Price),
			money(p.BasePrice),
			qty(p.Net),
			qty(p.Rate),
			qty(p.Depot),
			auto,
		})
	}
	_ = table.Render()
}

func printEntities(w io.Writer, views []engine.EntityView) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Grid", "Type", "Level", "Status", "Output/s", "Input/s"}),
	)
	for _, v := range views {
		_ = table.Append([]string{
			v.Key,
			string(v.Type),
			fmt.Sprintf("%d", v.Level),
			v.Status,
			amounts(v.Rates.Live.Outputs),
			amounts(v.Rates.Live.Inputs),
		})
	}
	_ = table.Render()
}

func printEntity(w io.Writer, v engine.EntityView) {
	titleColor.Fprintf(w, "%s at %s (level %d)\n", v.Type, v.Key, v.Level)
	fmt.Fprintf(w, "  Status:       %s\n", v.Status)
	if v.Construction != "none" {
		fmt.Fprintf(w, "  Construction: %s\n", v.Construction)
	}
	fmt.Fprintf(w, "  Storage:      %s\n", amounts(v.Storage))
	fmt.Fprintf(w, "  Incoming:     %s\n", amounts(v.Incoming))
	fmt.Fprintf(w, "  Stable rate:  in %s / out %s\n", amounts(v.Rates.Stable.Inputs), amounts(v.Rates.Stable.Outputs))
	fmt.Fprintf(w, "  Live rate:    in %s / out %s\n", amounts(v.Rates.Live.Inputs), amounts(v.Rates.Live.Outputs))
	fmt.Fprintf(w, "  Invested:     %s (next level %s)\n", money(v.Invested), money(v.NextLevel))
	if len(v.Recipes) > 0 {
		fmt.Fprintf(w, "  Recipes:      %s\n", strings.Join(v.Recipes, ", "))
	}
}

func printBuildings(w io.Writer, list []engine.BuildingInfo) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Building", "Industry", "Cost", "Unlock", "Power", "Inputs", "Outputs", "Placed"}),
	)
	for _, b := range list {
		unlock := "-"
		switch {
		case b.UnlockCost > 0 && b.Unlocked:
			unlock = "done"
		case b.UnlockCost > 0:
			unlock = money(b.UnlockCost)
		}
		_ = table.Append([]string{
			string(b.Key),
			b.Industry,
			money(b.Cost),
			unlock,
			qty(b.Power),
			amounts(b.Inputs),
			amounts(b.Outputs),
			fmt.Sprintf("%d", b.Placed),
		})
	}
	_ = table.Render()
}

func printPolicies(w io.Writer, list []engine.PolicyInfo) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Policy", "Active", "Cost", "Description"}),
	)
	for _, p := range list {
		active := ""
		if p.Active {
			active = "yes"
		}
		_ = table.Append([]string{p.Key, active, money(p.Cost), p.Description})
	}
	_ = table.Render()
}

// printReceipt reports a command outcome. A rejection is returned as an
// error so the exit code reflects it.
func printReceipt(w io.Writer, what string, rc engine.Receipt) error {
	if !rc.OK {
		return fmt.Errorf("%s rejected: %s", what, rc.Reason)
	}
	okColor.Fprintf(w, "✓ %s", what)
	switch {
	case rc.Cost > 0:
		fmt.Fprintf(w, " (cost %s)", money(rc.Cost))
	case rc.Gain > 0:
		fmt.Fprintf(w, " (gain %s)", money(rc.Gain))
	}
	fmt.Fprintln(w)
	if rc.Reason != "" {
		warnColor.Fprintf(w, "  %s\n", rc.Reason)
	}
	return nil
}

func printBatch(w io.Writer, res batch.Result) {
	okColor.Fprintf(w, "✓ %s (%s): %d of %d succeeded\n", res.Action, res.Mode, res.Succeeded, res.Selected)
	if res.TotalCost > 0 {
		fmt.Fprintf(w, "  Spent:  %s\n", money(res.TotalCost))
	}
	if res.TotalGain > 0 {
		fmt.Fprintf(w, "  Earned: %s\n", money(res.TotalGain))
	}
	for _, f := range res.Failures {
		warnColor.Fprintf(w, "  %s: %s\n", f.Grid.Key(), f.Reason)
	}
}
