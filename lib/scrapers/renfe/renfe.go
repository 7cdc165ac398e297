package renfe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/renfe")

const (
	baseURL          = "https://venta.renfe.com"
	searchURL        = baseURL + "/vol/buscarTren.do?Idioma=es&Pais=ES"
	dwrBase          = baseURL + "/vol/dwr/call/plaincall/"
	generateIDURL    = dwrBase + "__System.generateId.dwr"
	updateSessionURL = dwrBase + "buyEnlacesManager.actualizaObjetosSesion.dwr"
	trainListURL     = dwrBase + "trainEnlacesManager.getTrainsList.dwr"

	wireDateFormat = "02/01/2006"
)

// transportAPI is what the orchestrator needs from the HTTP layer.
// *Transport satisfies it; tests substitute a recording fake.
type transportAPI interface {
	PostRaw(ctx context.Context, url, body string) ([]byte, error)
	PostForm(ctx context.Context, url string, form map[string]string) ([]byte, error)
	SetCookie(c *http.Cookie)
	Close()
}

type ScraperOptions struct {
	Origin        Station
	Destination   Station
	DepartureDate time.Time
	ReturnDate    *time.Time
	// Limiter defaults to DefaultLimiter; Transport to a fresh
	// production transport with DefaultTransportOptions.
	Limiter   *Limiter
	Transport transportAPI
}

// Scraper drives one fare lookup through the booking front end's
// private remote-call sequence: cookie before search POST, search
// before the token calls, token before session update, session update
// before the train list. The calls depend on each other's results, so
// they never reorder and never run in parallel.
type Scraper struct {
	origin        Station
	destination   Station
	departureDate time.Time
	returnDate    *time.Time

	sess    *session
	tr      transportAPI
	limiter *Limiter
}

func NewScraper(opts ScraperOptions) (*Scraper, error) {
	urls := []string{searchURL, generateIDURL, updateSessionURL, trainListURL}
	for _, u := range urls {
		if err := validateURL(u, DefaultTransportOptions().AllowedHosts); err != nil {
			return nil, err
		}
	}

	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	tr := opts.Transport
	if tr == nil {
		tr, err = NewTransport(DefaultTransportOptions())
		if err != nil {
			return nil, err
		}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = DefaultLimiter
	}

	return &Scraper{
		origin:        opts.Origin,
		destination:   opts.Destination,
		departureDate: opts.DepartureDate,
		returnDate:    opts.ReturnDate,
		sess:          sess,
		tr:            tr,
		limiter:       limiter,
	}, nil
}

// GetTrains runs the handshake and returns the mapped rides. The
// transport is released on every exit path; errors surface as one of
// SecurityError, NetworkError, TokenError or ParseError.
func (s *Scraper) GetTrains(ctx context.Context) (rides []Ride, err error) {
	ctx, span := tracer.Start(ctx, "scraper:GetTrains")
	defer span.End()
	defer s.tr.Close()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scrape failed")
			s.limiter.RecordError()
		} else {
			s.limiter.RecordSuccess()
		}
	}()

	start := time.Now()
	slog.InfoContext(ctx, "starting scrape",
		"origin", s.origin.Code,
		"destination", s.destination.Code,
		"date", s.departureDate.Format("2006-01-02"),
	)

	if err := s.submitSearch(ctx); err != nil {
		return nil, err
	}
	if err := s.acquireToken(ctx); err != nil {
		return nil, err
	}
	if err := s.updateSession(ctx); err != nil {
		return nil, err
	}
	body, err := s.fetchTrainList(ctx)
	if err != nil {
		return nil, err
	}

	list, err := extractTrainList(body)
	if err != nil {
		return nil, err
	}
	rides, dropped := mapRides(list, s.origin, s.destination, s.departureDate, s.returnDate)
	if dropped > 0 {
		slog.WarnContext(ctx, "dropped unmappable ride records", "dropped", dropped)
	}

	slog.InfoContext(ctx, "scrape completed",
		"rides", len(rides),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rides, nil
}

func (s *Scraper) postRaw(ctx context.Context, url, body string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Reason: "cancelled while rate limited", Cause: err}
	}
	return s.tr.PostRaw(ctx, url, body)
}

func (s *Scraper) postForm(ctx context.Context, url string, form map[string]string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Reason: "cancelled while rate limited", Cause: err}
	}
	return s.tr.PostForm(ctx, url, form)
}

// The front end expects a relaxed single-quoted descriptor in the
// Search cookie, not strict JSON.
func searchCookie(origin, destination Station) string {
	return fmt.Sprintf(
		"{'origen':{'code':'%s','name':'%s'},'destino':{'code':'%s','name':'%s'},'pasajerosAdultos':1,'pasajerosNinos':0,'pasajerosSpChild':0}",
		origin.Code, origin.Name, destination.Code, destination.Name,
	)
}

func (s *Scraper) submitSearch(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scraper:submitSearch")
	defer span.End()

	s.tr.SetCookie(&http.Cookie{
		Name:   "Search",
		Value:  searchCookie(s.origin, s.destination),
		Domain: ".renfe.com",
		Path:   "/",
	})

	returnDate := ""
	if s.returnDate != nil {
		returnDate = s.returnDate.Format(wireDateFormat)
	}
	departureDate := s.departureDate.Format(wireDateFormat)

	_, err := s.postForm(ctx, searchURL, map[string]string{
		"tipoBusqueda":      "autocomplete",
		"currenLocation":    "menuBusqueda",
		"vengoderenfecom":   "SI",
		"desOrigen":         s.origin.Name,
		"desDestino":        s.destination.Name,
		"cdgoOrigen":        s.origin.Code,
		"cdgoDestino":       s.destination.Code,
		"idiomaBusqueda":    "ES",
		"FechaIdaSel":       departureDate,
		"FechaVueltaSel":    returnDate,
		"_fechaIdaVisual":   departureDate,
		"_fechaVueltaVisual": returnDate,
		"adultos_":          "1",
		"ninos_":            "0",
		"ninosMenores":      "0",
		"codPromocional":    "",
		"plazaH":            "false",
		"sinEnlace":         "false",
		"asistencia":        "false",
		"franjaHoraI":       "",
		"franjaHoraV":       "",
		"Idioma":            "es",
		"Pais":              "ES",
	})
	if err != nil {
		span.SetStatus(codes.Error, "search submission failed")
		return err
	}
	return nil
}

// acquireToken performs the two-call token dance. The first generateId
// call is priming only: it establishes the page-navigation context the
// server's session machinery expects, and its callback carries no
// usable token. Skipping it is a known cause of token extraction
// failure.
func (s *Scraper) acquireToken(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scraper:acquireToken")
	defer span.End()

	if _, err := s.postRaw(ctx, generateIDURL, buildGenerateIDPayload(s.sess.nextBatchID(), "")); err != nil {
		span.SetStatus(codes.Error, "priming call failed")
		return err
	}

	body, err := s.postRaw(ctx, generateIDURL, buildGenerateIDPayload(s.sess.nextBatchID(), s.sess.searchID))
	if err != nil {
		span.SetStatus(codes.Error, "token call failed")
		return err
	}
	token, err := extractToken(body)
	if err != nil {
		span.SetStatus(codes.Error, "token extraction failed")
		return err
	}
	s.sess.token = token

	// from here on the token rides along twice: as a cookie scoped to
	// the booking sub-path and encoded inside scriptSessionId
	s.tr.SetCookie(&http.Cookie{
		Name:   "DWRSESSIONID",
		Value:  token,
		Path:   "/vol",
		Domain: "venta.renfe.com",
	})
	s.sess.scriptSessionID, err = newScriptSessionID(token, time.Now())
	return err
}

func (s *Scraper) updateSession(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scraper:updateSession")
	defer span.End()

	payload := buildUpdateSessionPayload(s.sess.nextBatchID(), s.sess.searchID, s.sess.scriptSessionID)
	_, err := s.postRaw(ctx, updateSessionURL, payload)
	if err != nil {
		span.SetStatus(codes.Error, "session update failed")
	}
	return err
}

func (s *Scraper) fetchTrainList(ctx context.Context) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "scraper:fetchTrainList")
	defer span.End()

	returnDate := ""
	if s.returnDate != nil {
		returnDate = s.returnDate.Format(wireDateFormat)
	}
	payload := buildTrainListPayload(
		s.sess.nextBatchID(),
		s.sess.searchID,
		s.sess.scriptSessionID,
		s.departureDate.Format(wireDateFormat),
		returnDate,
	)
	body, err := s.postRaw(ctx, trainListURL, payload)
	if err != nil {
		span.SetStatus(codes.Error, "train list fetch failed")
	}
	return body, err
}
