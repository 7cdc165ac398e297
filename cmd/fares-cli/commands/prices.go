package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"railfare-backend/lib/configutil"
	"railfare-backend/lib/farestore"
	"railfare-backend/lib/restyutil"
	"railfare-backend/lib/scrapers/renfe"
	"railfare-backend/lib/serviceutil"
	"railfare-backend/lib/stations"
	"railfare-backend/lib/timezone"
	"railfare-backend/services/fares"

	"github.com/spf13/cobra"
)

type LimiterConfig struct {
	MinDelaySeconds float64 `json:"min_delay_seconds"`
	MaxPerWindow    int     `json:"max_per_window"`
	WindowSeconds   float64 `json:"window_seconds"`
}

type Config struct {
	// StorePath enables fare history when set.
	StorePath string `json:"store_path"`
	// DumpHttp names a directory for raw request/response dumps.
	DumpHttp string        `json:"dump_http"`
	Limiter  LimiterConfig `json:"limiter"`
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("fares.json5")
	if os.IsNotExist(err) {
		return Config{}
	}
	if err != nil {
		serviceutil.Fatal("failed to read fares.json5", err)
	}
	return cfg
}

func limiterFromConfig(cfg LimiterConfig) *renfe.Limiter {
	opts := renfe.DefaultLimiterOptions()
	if cfg.MinDelaySeconds > 0 {
		opts.MinDelay = time.Duration(cfg.MinDelaySeconds * float64(time.Second))
	}
	if cfg.MaxPerWindow > 0 {
		opts.MaxPerWindow = cfg.MaxPerWindow
	}
	if cfg.WindowSeconds > 0 {
		opts.Window = time.Duration(cfg.WindowSeconds * float64(time.Second))
	}
	return renfe.NewLimiter(opts)
}

// parseDate accepts ISO and the booking site's own day format.
func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, value, timezone.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, use YYYY-MM-DD or DD/MM/YYYY", value)
}

// dumpingScrape builds a scrape that routes traffic through a
// transport with a debug output sink attached.
func dumpingScrape(dir string) fares.ScrapeFunc {
	return func(ctx context.Context, opts renfe.ScraperOptions) ([]renfe.Ride, error) {
		output, err := restyutil.NewFilesystemOutput(dir)
		if err != nil {
			return nil, err
		}
		tr, err := renfe.NewTransport(renfe.DefaultTransportOptions())
		if err != nil {
			return nil, err
		}
		restyutil.AttachOutput(tr.Client(), output)
		opts.Transport = tr

		scraper, err := renfe.NewScraper(opts)
		if err != nil {
			tr.Close()
			return nil, err
		}
		return scraper.GetTrains(ctx)
	}
}

func init() {
	var (
		dateFlag    string
		returnFlag  string
		pageFlag    int
		perPageFlag int
	)

	pricesCmd := &cobra.Command{
		Use:   "prices <origin> <destination>",
		Short: "Scrape live fares for a route.",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := readConfig()

			departureDate := timezone.Now().AddDate(0, 0, 1)
			if dateFlag != "" {
				var err error
				departureDate, err = parseDate(dateFlag)
				if err != nil {
					serviceutil.Fatal("bad --date", err)
				}
			}
			var returnDate *time.Time
			if returnFlag != "" {
				d, err := parseDate(returnFlag)
				if err != nil {
					serviceutil.Fatal("bad --return", err)
				}
				returnDate = &d
			}

			catalog, err := stations.Load()
			if err != nil {
				serviceutil.Fatal("failed to load station catalog", err)
			}

			var store *farestore.Store
			if cfg.StorePath != "" {
				store, err = farestore.Open(cfg.StorePath)
				if err != nil {
					serviceutil.Fatal("failed to open fare store", err)
				}
				defer store.Close()
			}

			var scrape fares.ScrapeFunc
			if cfg.DumpHttp != "" {
				scrape = dumpingScrape(cfg.DumpHttp)
			}

			svc := fares.NewService(fares.Options{
				Catalog: catalog,
				Store:   store,
				Limiter: limiterFromConfig(cfg.Limiter),
				Scrape:  scrape,
			})

			page, err := svc.CheckPrices(cmd.Context(), fares.PriceRequest{
				Origin:        args[0],
				Destination:   args[1],
				DepartureDate: departureDate,
				ReturnDate:    returnDate,
				Page:          pageFlag,
				PerPage:       perPageFlag,
			})
			if err != nil {
				serviceutil.Fatal("failed to check prices", err)
			}

			fmt.Println(fares.RenderTable(page, departureDate.Format("02/01/2006")))
		},
	}

	pricesCmd.Flags().StringVar(&dateFlag, "date", "", "departure date (defaults to tomorrow)")
	pricesCmd.Flags().StringVar(&returnFlag, "return", "", "return date for round trips")
	pricesCmd.Flags().IntVar(&pageFlag, "page", 1, "result page")
	pricesCmd.Flags().IntVar(&perPageFlag, "per-page", 10, "results per page")
	rootCmd.AddCommand(pricesCmd)
}
