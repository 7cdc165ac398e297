package fares

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderTable formats a price page for terminal output.
func RenderTable(page PricePage, departureDate string) string {
	if len(page.Rides) == 0 {
		return fmt.Sprintf("No trains found from %s to %s on %s.",
			page.Origin.Name, page.Destination.Name, departureDate)
	}

	var sb strings.Builder
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(&sb)

	t.AppendHeader(table.Row{"Train", "From", "To", "Departure", "Arrival", "Duration", "Price", "Status"})
	for _, ride := range page.Rides {
		price := "-"
		if ride.Price > 0 {
			price = fmt.Sprintf("%.2f €", ride.Price)
		}
		status := "sold out"
		if ride.Available {
			status = "available"
		}
		t.AppendRow(table.Row{
			ride.TrainType,
			ride.Origin,
			ride.Destination,
			ride.Departure.Format("02/01 15:04"),
			ride.Arrival.Format("02/01 15:04"),
			fmt.Sprintf("%dm", ride.DurationMinutes),
			price,
			status,
		})
	}
	t.Render()

	fmt.Fprintf(&sb, "Page %d of %d (%d trains)\n", page.Page, page.TotalPages, page.TotalRides)
	return sb.String()
}
