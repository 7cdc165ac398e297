// Package farestore keeps a history of scraped fares so price movement
// can be tracked across repeated checks of the same route.
package farestore

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"railfare-backend/lib/scrapers/renfe"
	"railfare-backend/lib/timezone"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type PushRequest struct {
	Time        time.Time
	Origin      renfe.Station
	Destination renfe.Station
	TravelDate  time.Time
	Rides       []renfe.Ride
}

// Push replaces any snapshots already taken today for the same route,
// so repeated checks within a day keep only the freshest prices.
func (s *Store) Push(ctx context.Context, req PushRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO route (origin_code, origin_name, destination_code, destination_name)
VALUES (?, ?, ?, ?)
ON CONFLICT (origin_code, destination_code) DO NOTHING`,
		req.Origin.Code, req.Origin.Name, req.Destination.Code, req.Destination.Name)
	if err != nil {
		return err
	}

	var routeID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM route WHERE origin_code = ? AND destination_code = ?`,
		req.Origin.Code, req.Destination.Code).Scan(&routeID)
	if err != nil {
		return err
	}

	startOfToday := time.Date(req.Time.Year(), req.Time.Month(), req.Time.Day(), 0, 0, 0, 0, timezone.Location).Unix()
	startOfTomorrow := time.Date(req.Time.Year(), req.Time.Month(), req.Time.Day()+1, 0, 0, 0, 0, timezone.Location).Unix()

	travelDate := req.TravelDate.Format("2006-01-02")
	_, err = tx.ExecContext(ctx, `
DELETE FROM fare_snapshot
WHERE route_id = ? AND travel_date = ? AND scraped_at >= ? AND scraped_at < ?`,
		routeID, travelDate, startOfToday, startOfTomorrow)
	if err != nil {
		return err
	}

	for _, ride := range req.Rides {
		_, err = tx.ExecContext(ctx, `
INSERT INTO fare_snapshot
    (route_id, scraped_at, travel_date, train_type, departure, arrival, duration_minutes, price, available)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			routeID, req.Time.Unix(), travelDate, ride.TrainType,
			ride.Departure.Unix(), ride.Arrival.Unix(), ride.DurationMinutes,
			ride.Price, ride.Available)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

type FareSnapshot struct {
	ScrapedAt       time.Time
	TrainType       string
	Departure       time.Time
	Arrival         time.Time
	DurationMinutes int
	Price           float64
	Available       bool
}

// History returns the stored snapshots for a route and travel date,
// oldest scrape first.
func (s *Store) History(ctx context.Context, originCode, destinationCode string, travelDate time.Time) ([]FareSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT f.scraped_at, f.train_type, f.departure, f.arrival, f.duration_minutes, f.price, f.available
FROM fare_snapshot f
JOIN route r ON r.id = f.route_id
WHERE r.origin_code = ? AND r.destination_code = ? AND f.travel_date = ?
ORDER BY f.scraped_at ASC, f.departure ASC`,
		originCode, destinationCode, travelDate.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FareSnapshot
	for rows.Next() {
		var snap FareSnapshot
		var scrapedAt, departure, arrival int64
		err := rows.Scan(&scrapedAt, &snap.TrainType, &departure, &arrival,
			&snap.DurationMinutes, &snap.Price, &snap.Available)
		if err != nil {
			return nil, err
		}
		snap.ScrapedAt = time.Unix(scrapedAt, 0).In(timezone.Location)
		snap.Departure = time.Unix(departure, 0).In(timezone.Location)
		snap.Arrival = time.Unix(arrival, 0).In(timezone.Location)
		out = append(out, snap)
	}
	return out, rows.Err()
}
