package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/destination-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/destination-etl/internal/adapter/geojson"
	"github.com/couchcryptid/destination-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

type reportOptions struct {
	fromDB     bool
	topCities  int
	perCity    int
	noHotels   bool
	geojsonOut string
}

func newReportCmd(a *app) *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the city ranking and the top hotels of the best cities",
		Long: `report reads the master table and prints two tables: every city ranked by
weather score, and the best hotels of the top cities. Hotels without
coordinates are placed near their city centre.

Examples:
  etl report
  etl report --top 3 --per-city 5
  etl report --from-db --geojson data/processed/map.geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.topCities < 1 || opts.perCity < 1 {
				return fmt.Errorf("--top and --per-city must be positive")
			}
			rows, err := a.masterRows(cmd.Context(), opts.fromDB)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), rows, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.fromDB, "from-db", false, "read the master table from DATABASE_DSN instead of MASTER_FILE")
	cmd.Flags().IntVar(&opts.topCities, "top", mapTopCities, "number of best cities whose hotels are listed")
	cmd.Flags().IntVar(&opts.perCity, "per-city", mapHotelsPerCity, "maximum hotels listed per city")
	cmd.Flags().BoolVar(&opts.noHotels, "no-hotels", false, "print the city ranking only")
	cmd.Flags().StringVar(&opts.geojsonOut, "geojson", "", "also export both layers as GeoJSON to this path")
	return cmd
}

func (a *app) masterRows(ctx context.Context, fromDB bool) ([]domain.MasterRow, error) {
	if !fromDB {
		return csvfile.ReadMaster(a.cfg.MasterFile)
	}
	if a.cfg.DatabaseDriver == "" {
		return nil, fmt.Errorf("--from-db requires DATABASE_DRIVER and DATABASE_DSN")
	}
	store, err := sqlstore.Open(ctx, a.cfg.DatabaseDriver, a.cfg.DatabaseDSN, a.cfg.DatabaseTable, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose(store.Close)
	return store.LoadRows(ctx)
}

func writeReport(w io.Writer, rows []domain.MasterRow, opts reportOptions) error {
	ranking := domain.RankCities(rows)
	renderRanking(w, ranking)

	var pins []domain.HotelPin
	if !opts.noHotels || opts.geojsonOut != "" {
		pins = domain.TopHotels(rows, opts.topCities, opts.perCity)
	}
	if !opts.noHotels {
		fmt.Fprintln(w)
		renderHotels(w, pins)
	}
	if opts.geojsonOut != "" {
		if err := geojson.WriteFile(opts.geojsonOut, geojson.Build(ranking, pins)); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nmap layers written to %s\n", opts.geojsonOut)
	}
	return nil
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle(title)
	return t
}

func renderRanking(w io.Writer, ranking []domain.CityRanking) {
	t := newTable(w, "Destinations by weather score")
	t.AppendHeader(table.Row{"#", "City", "Score", "Climate", "Avg temp (C)", "Rain (mm)", "Hotels", "Lat", "Lon"})
	for i, c := range ranking {
		t.AppendRow(table.Row{
			i + 1,
			c.City,
			fmt.Sprintf("%.1f", c.WeatherScore),
			fmt.Sprintf("%.1f", c.ClimateIndex),
			fmt.Sprintf("%.1f", c.AvgTemp),
			fmt.Sprintf("%.1f", c.TotalRainMM),
			c.Hotels,
			fmt.Sprintf("%.4f", c.Latitude),
			fmt.Sprintf("%.4f", c.Longitude),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()
}

func renderHotels(w io.Writer, pins []domain.HotelPin) {
	t := newTable(w, "Top hotels")
	t.AppendHeader(table.Row{"City", "Hotel", "Score", "Location"})
	for _, p := range pins {
		location := fmt.Sprintf("%.4f, %.4f", p.Latitude, p.Longitude)
		if !p.Exact {
			location += " (near centre)"
		}
		t.AppendRow(table.Row{p.City, p.HotelName, fmt.Sprintf("%.1f", p.Score), location})
	}
	t.AppendFooter(table.Row{"", "Hotels", len(pins), ""})
	t.Render()
}
