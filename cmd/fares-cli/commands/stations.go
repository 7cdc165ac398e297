package commands

import (
	"os"

	"railfare-backend/lib/serviceutil"
	"railfare-backend/lib/stations"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStationTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Code"})
	return t
}

func init() {
	stationsCmd := &cobra.Command{
		Use:   "stations",
		Short: "Inspect the station catalog.",
	}

	var limit int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stations by name.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			catalog, err := stations.Load()
			if err != nil {
				serviceutil.Fatal("failed to load station catalog", err)
			}

			t := newStationTable()
			for _, s := range catalog.Search(args[0], limit) {
				t.AppendRow(table.Row{s.Name, s.Code})
			}
			t.Render()
		},
	}
	searchCmd.Flags().IntVar(&limit, "limit", 10, "maximum results")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every station in the catalog.",
		Run: func(cmd *cobra.Command, args []string) {
			catalog, err := stations.Load()
			if err != nil {
				serviceutil.Fatal("failed to load station catalog", err)
			}

			t := newStationTable()
			for _, s := range catalog.All() {
				t.AppendRow(table.Row{s.Name, s.Code})
			}
			t.Render()
		},
	}

	stationsCmd.AddCommand(searchCmd, listCmd)
	rootCmd.AddCommand(stationsCmd)
}
