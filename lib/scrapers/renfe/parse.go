package renfe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"
)

// Responses are framed as an inline script invoking a named callback;
// the payload of interest is always the third argument.
var (
	tokenCallbackRegex = regexp.MustCompile(`r\.handleCallback\("[^"]+","[^"]+","([^"]+)"\)`)
	listCallbackRegex  = regexp.MustCompile(`(?s)r\.handleCallback\([^,]+,\s*[^,]+,\s*(\{.*\})\);`)
)

func extractToken(body []byte) (string, error) {
	m := tokenCallbackRegex.FindSubmatch(body)
	if m == nil {
		return "", &TokenError{
			Reason: fmt.Sprintf("no token callback in %d byte response", len(body)),
		}
	}
	return string(m[1]), nil
}

type rawTrainList struct {
	// outbound first, then the return direction if one was requested
	Directions []rawDirection `json:"listadoTrenes"`
}

type rawDirection struct {
	Rides []rawRide `json:"listviajeViewEnlaceBean"`
}

// The field soup is the operator's own: unquoted keys, comma decimals,
// flags whose absence means the unavailable side.
type rawRide struct {
	TrainType string  `json:"tipoTrenUno"`
	Departure string  `json:"horaSalida"`
	Arrival   string  `json:"horaLlegada"`
	Duration  int     `json:"duracionViajeTotalEnMinutos"`
	MinFare   *string `json:"tarifaMinima"`
	Full      *bool   `json:"completo"`
	Reason    string  `json:"razonNoDisponible"`
	SeatOnly  *bool   `json:"soloPlazaH"`
}

// extractTrainList isolates the brace-delimited object from the
// callback wrapper and parses it under relaxed JSON rules.
func extractTrainList(body []byte) (*rawTrainList, error) {
	m := listCallbackRegex.FindSubmatch(body)
	if m == nil {
		return nil, &ParseError{
			Reason: fmt.Sprintf("no train list callback in %d byte response", len(body)),
		}
	}
	var list rawTrainList
	if err := json5.Unmarshal(m[1], &list); err != nil {
		return nil, &ParseError{Reason: "train list payload is not relaxed-parseable", Cause: err}
	}
	return &list, nil
}

// parsePrice normalizes the operator's comma-decimal fare strings.
// A missing fare maps to 0.
func parsePrice(fare *string) (float64, error) {
	if fare == nil || *fare == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(*fare, ",", "."), 64)
}

// isAvailable is the conjunction of four independent server fields:
// not full, reason code empty or "8", a minimum fare present, and not
// restricted to special seating. Reason codes other than "" and "8"
// are treated as unavailable; the operator does not document the full
// code set, so this remains a heuristic to revalidate against live
// responses.
func isAvailable(r rawRide) bool {
	full := r.Full == nil || *r.Full
	seatOnly := r.SeatOnly == nil || *r.SeatOnly
	reasonOK := r.Reason == "" || r.Reason == "8"
	return !full && reasonOK && r.MinFare != nil && !seatOnly
}

// parseClock combines an "HH:MM" wire time with the relevant leg's
// reference date.
func parseClock(v string, ref time.Time) (time.Time, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("malformed clock value %q", v)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), hours, minutes, 0, 0, ref.Location()), nil
}

func mapRide(raw rawRide, from, to Station, ref time.Time) (Ride, error) {
	price, err := parsePrice(raw.MinFare)
	if err != nil {
		return Ride{}, err
	}
	departure, err := parseClock(raw.Departure, ref)
	if err != nil {
		return Ride{}, err
	}
	arrival, err := parseClock(raw.Arrival, ref)
	if err != nil {
		return Ride{}, err
	}
	trainType := raw.TrainType
	if trainType == "" {
		trainType = "N/A"
	}
	return Ride{
		TrainType:       trainType,
		Origin:          from.Name,
		Destination:     to.Name,
		Departure:       departure,
		Arrival:         arrival,
		DurationMinutes: raw.Duration,
		Price:           price,
		Available:       isAvailable(raw),
	}, nil
}

// mapRides folds the raw records into Rides, collecting successes and
// discarding records that fail to map. The dropped count is surfaced
// for observability; partial results beat total failure.
func mapRides(list *rawTrainList, origin, destination Station, depDate time.Time, retDate *time.Time) (rides []Ride, dropped int) {
	for i, dir := range list.Directions {
		from, to, ref := origin, destination, depDate
		if i > 0 {
			if retDate == nil {
				break
			}
			from, to, ref = destination, origin, *retDate
		}
		for _, raw := range dir.Rides {
			ride, err := mapRide(raw, from, to, ref)
			if err != nil {
				dropped++
				continue
			}
			rides = append(rides, ride)
		}
	}
	return rides, dropped
}
