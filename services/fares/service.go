// Package fares is the service layer over the fare scraper: it
// resolves station names, applies the error backoff, runs the scrape,
// records history and paginates the result.
package fares

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"railfare-backend/lib/farestore"
	"railfare-backend/lib/scrapers/renfe"
	"railfare-backend/lib/stations"
	"railfare-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/fares")

// StationNotFoundError carries the query that failed to resolve so the
// caller can suggest alternatives.
type StationNotFoundError struct {
	Query string
}

func (e *StationNotFoundError) Error() string {
	return fmt.Sprintf("no station matches %q", e.Query)
}

type ScrapeFunc func(ctx context.Context, opts renfe.ScraperOptions) ([]renfe.Ride, error)

func liveScrape(ctx context.Context, opts renfe.ScraperOptions) ([]renfe.Ride, error) {
	scraper, err := renfe.NewScraper(opts)
	if err != nil {
		return nil, err
	}
	return scraper.GetTrains(ctx)
}

type Options struct {
	Catalog *stations.Catalog
	// Store is optional; without it no history is kept.
	Store *farestore.Store
	// Limiter defaults to the process-wide renfe.DefaultLimiter.
	Limiter *renfe.Limiter
	// Scrape defaults to a live scrape with a fresh transport.
	Scrape ScrapeFunc
}

type Service struct {
	catalog *stations.Catalog
	store   *farestore.Store
	limiter *renfe.Limiter
	scrape  ScrapeFunc
}

func NewService(opts Options) Service {
	if opts.Limiter == nil {
		opts.Limiter = renfe.DefaultLimiter
	}
	if opts.Scrape == nil {
		opts.Scrape = liveScrape
	}
	return Service{
		catalog: opts.Catalog,
		store:   opts.Store,
		limiter: opts.Limiter,
		scrape:  opts.Scrape,
	}
}

type PriceRequest struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Page          int
	PerPage       int
}

type PricePage struct {
	Origin      renfe.Station
	Destination renfe.Station
	Rides       []renfe.Ride
	Page        int
	TotalPages  int
	TotalRides  int
}

// CheckPrices resolves both endpoints, waits out any error backoff,
// scrapes and returns the requested page of results.
func (s Service) CheckPrices(ctx context.Context, req PriceRequest) (PricePage, error) {
	ctx, span := tracer.Start(ctx, "fares:CheckPrices")
	defer span.End()

	origin, ok := s.catalog.Find(req.Origin)
	if !ok {
		return PricePage{}, &StationNotFoundError{Query: req.Origin}
	}
	destination, ok := s.catalog.Find(req.Destination)
	if !ok {
		return PricePage{}, &StationNotFoundError{Query: req.Destination}
	}

	if delay := s.limiter.BackoffDelay(); delay > 0 {
		slog.InfoContext(ctx, "backing off after previous failures", "delay", delay)
		select {
		case <-ctx.Done():
			return PricePage{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	rides, err := s.scrape(ctx, renfe.ScraperOptions{
		Origin:        origin,
		Destination:   destination,
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		Limiter:       s.limiter,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return PricePage{}, err
	}

	if s.store != nil {
		err := s.store.Push(ctx, farestore.PushRequest{
			Time:        timezone.Now(),
			Origin:      origin,
			Destination: destination,
			TravelDate:  req.DepartureDate,
			Rides:       rides,
		})
		if err != nil {
			// history is best-effort, a failed write must not lose the scrape
			slog.WarnContext(ctx, "failed to record fare history", "err", err)
		}
	}

	pageRides, page, totalPages := paginate(rides, req.Page, req.PerPage)
	return PricePage{
		Origin:      origin,
		Destination: destination,
		Rides:       pageRides,
		Page:        page,
		TotalPages:  totalPages,
		TotalRides:  len(rides),
	}, nil
}
