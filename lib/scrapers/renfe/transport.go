package renfe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"railfare-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

// TransportOptions carries the security knobs of the HTTP layer. These
// are tunable constants, not protocol requirements.
type TransportOptions struct {
	AllowedHosts    []string
	MaxResponseSize int64
	MaxRedirects    int
	Timeout         time.Duration
	UserAgent       string
}

func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		AllowedHosts:    []string{"venta.renfe.com", "www.renfe.com", "renfe.com"},
		MaxResponseSize: 10 << 20,
		MaxRedirects:    3,
		Timeout:         time.Second * 30,
		UserAgent:       "railfare-backend/0.1 (train fare tool)",
	}
}

var blockedHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
}

// validateURL rejects anything the scraper must never talk to: plain
// http, loopback and local addresses, and any host outside the
// operator's domains (look-alike subdomains do not match the
// allow-list either, comparison is on the full hostname).
func validateURL(raw string, allowed []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &SecurityError{Reason: fmt.Sprintf("unparseable url %q: %s", raw, err)}
	}
	if u.Scheme != "https" {
		return &SecurityError{Reason: fmt.Sprintf("insecure scheme %q, only https is allowed", u.Scheme)}
	}
	host := u.Hostname()
	if blockedHosts[host] {
		return &SecurityError{Reason: fmt.Sprintf("local or loopback address %q is not allowed", host)}
	}
	for _, a := range allowed {
		if host == a {
			return nil
		}
	}
	return &SecurityError{Reason: fmt.Sprintf("host %q is not in the allow-list", host)}
}

// Transport is the constrained HTTP client a scrape owns: allow-listed
// hosts only, TLS only, bounded redirects, bounded response size,
// fixed timeouts. The cookie jar is stateful across calls within one
// scrape.
type Transport struct {
	client *resty.Client
	opts   TransportOptions
}

func NewTransport(opts TransportOptions) (*Transport, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(opts.MaxRedirects),
		resty.DomainCheckRedirectPolicy(opts.AllowedHosts...),
	)
	client.SetHeaders(map[string]string{
		"User-Agent":      opts.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "es-ES,es;q=0.9,en;q=0.8",
		"DNT":             "1",
	})

	hc := client.GetClient()
	hc.Transport = sizeCapRoundTripper{next: hc.Transport, max: opts.MaxResponseSize}

	telemetry.InstrumentResty(client, "scrapers/renfe/http")

	return &Transport{client: client, opts: opts}, nil
}

// Client exposes the underlying resty client so callers can attach
// debug output sinks.
func (t *Transport) Client() *resty.Client {
	return t.client
}

func (t *Transport) SetCookie(c *http.Cookie) {
	t.client.SetCookie(c)
}

func (t *Transport) Close() {
	t.client.GetClient().CloseIdleConnections()
}

// PostRaw sends a line-oriented DWR payload. The body is text/plain,
// not form-encoded.
func (t *Transport) PostRaw(ctx context.Context, rawurl, body string) ([]byte, error) {
	if err := validateURL(rawurl, t.opts.AllowedHosts); err != nil {
		return nil, err
	}
	res, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(body).
		Post(rawurl)
	return t.finish(res, err)
}

// PostForm sends an ordinary form-encoded POST (the search submission
// is the only call that uses it).
func (t *Transport) PostForm(ctx context.Context, rawurl string, form map[string]string) ([]byte, error) {
	if err := validateURL(rawurl, t.opts.AllowedHosts); err != nil {
		return nil, err
	}
	res, err := t.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(rawurl)
	return t.finish(res, err)
}

func (t *Transport) finish(res *resty.Response, err error) ([]byte, error) {
	if err != nil {
		var se *SecurityError
		if errors.As(err, &se) {
			return nil, se
		}
		if strings.Contains(err.Error(), "redirect") {
			return nil, &NetworkError{Reason: "too many redirects", Cause: err}
		}
		return nil, &NetworkError{Reason: "request failed", Cause: err}
	}
	if res.StatusCode() >= 400 {
		return nil, &NetworkError{Reason: fmt.Sprintf("http %d from %s", res.StatusCode(), res.Request.URL)}
	}
	return res.Body(), nil
}

// sizeCapRoundTripper enforces the response ceiling before the body is
// read: a Content-Length over the limit fails immediately, and bodies
// without a length header are bounded while being read.
type sizeCapRoundTripper struct {
	next http.RoundTripper
	max  int64
}

func (rt sizeCapRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := rt.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if res.ContentLength > rt.max {
		res.Body.Close()
		return nil, &SecurityError{
			Reason: fmt.Sprintf("response of %d bytes exceeds the %d byte ceiling", res.ContentLength, rt.max),
		}
	}
	// one byte of slack so a body of exactly max bytes can deliver its EOF
	res.Body = &cappedBody{rc: res.Body, remaining: rt.max + 1, max: rt.max}
	return res, nil
}

type cappedBody struct {
	rc        io.ReadCloser
	remaining int64
	max       int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, &SecurityError{
			Reason: fmt.Sprintf("response body exceeds the %d byte ceiling", b.max),
		}
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func (b *cappedBody) Close() error {
	return b.rc.Close()
}
