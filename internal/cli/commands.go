package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

// YearsCommand lists the order years of the table.
type YearsCommand struct {
	env *env
}

// SummaryCommand prints the dashboard for one selection.
type SummaryCommand struct {
	Year string `long:"year" short:"y" description:"Order year, or All" default:"All"`
	Top  int    `long:"top" description:"Products listed per ranking; 0 uses the configured count" default:"0"`

	env *env
}

// ChangesCommand prints the year-over-year change series of every KPI.
type ChangesCommand struct {
	env *env
}

// Execute implements the go-flags Commander interface for YearsCommand.
func (c *YearsCommand) Execute(args []string) error {
	a, err := c.env.analytics()
	if err != nil {
		return err
	}
	years, err := a.Years(context.Background())
	if err != nil {
		return err
	}

	if c.env.globals.JSON {
		return c.env.writeJSON(map[string]any{"years": years})
	}
	for _, y := range years {
		c.env.printf("%d\n", y)
	}
	return nil
}

// Execute implements the go-flags Commander interface for SummaryCommand.
func (c *SummaryCommand) Execute(args []string) error {
	if c.Top < 0 {
		return fmt.Errorf("--top must not be negative, got %d", c.Top)
	}

	a, err := c.env.analytics()
	if err != nil {
		return err
	}

	selection := strings.TrimSpace(c.Year)
	if strings.EqualFold(selection, services.SelectAll) {
		selection = services.SelectAll
	}

	d, err := a.Dashboard(context.Background(), selection)
	if err != nil {
		return err
	}
	if c.Top > 0 {
		d.TopBySales = d.TopBySales[:min(c.Top, len(d.TopBySales))]
		d.TopByProfit = d.TopByProfit[:min(c.Top, len(d.TopByProfit))]
	}

	if c.env.globals.JSON {
		d.Records = nil
		return c.env.writeJSON(d)
	}
	c.printSummary(d)
	return nil
}

func (c *SummaryCommand) printSummary(d *models.Dashboard) {
	e := c.env

	e.printf("Selection: %s\n\n", d.Selection)
	e.printf("%-10s %16s %10s\n", "KPI", "Value", "Change")
	e.printf("%-10s %16.2f %10s\n", "Sales", d.KPIs.Sales, d.Deltas.Sales)
	e.printf("%-10s %16.2f %10s\n", "Profit", d.KPIs.Profit, d.Deltas.Profit)
	e.printf("%-10s %16d %10s\n", "Orders", d.KPIs.Orders, d.Deltas.Orders)
	e.printf("%-10s %16d %10s\n", "Quantity", d.KPIs.Quantity, d.Deltas.Quantity)

	printRanking(e, "Top products by sales", d.TopBySales)
	printRanking(e, "Top products by profit", d.TopByProfit)

	e.printf("\nDays to ship: avg %d (min %d, max %d)\n",
		d.Shipping.AverageDays, d.Shipping.MinDays, d.Shipping.MaxDays)

	e.printf("\nSales by category\n")
	for _, cs := range d.CategorySales {
		e.printf("%d  %-20s %14.2f\n", cs.Year, cs.Category, cs.Sales)
	}
}

func printRanking(e *env, title string, products []models.ProductTotal) {
	e.printf("\n%s\n", title)
	for i, p := range products {
		e.printf("%3d. %-48s %14.2f\n", i+1, p.ProductName, p.Total)
	}
}

// Execute implements the go-flags Commander interface for ChangesCommand.
func (c *ChangesCommand) Execute(args []string) error {
	a, err := c.env.analytics()
	if err != nil {
		return err
	}
	changes, err := a.Changes(context.Background())
	if err != nil {
		return err
	}

	if c.env.globals.JSON {
		return c.env.writeJSON(changes)
	}

	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		c.env.printf("%s\n", name)
		for _, p := range changes[name] {
			c.env.printf("  %d %10s\n", p.Year, p.Display)
		}
	}
	return nil
}

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
