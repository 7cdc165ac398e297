package renfe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	url  string
	body string
	form map[string]string
}

// fakeTransport replays canned remote-call responses while recording
// every request, cookie and the final Close.
type fakeTransport struct {
	calls   []recordedCall
	cookies []*http.Cookie
	closed  bool

	tokenBody     string
	trainListBody string
}

func (f *fakeTransport) PostRaw(_ context.Context, url, body string) ([]byte, error) {
	f.calls = append(f.calls, recordedCall{url: url, body: body})
	switch url {
	case generateIDURL:
		return []byte(f.tokenBody), nil
	case updateSessionURL:
		return []byte(`r.handleCallback("2","0",null);`), nil
	case trainListURL:
		return []byte(f.trainListBody), nil
	}
	return nil, fmt.Errorf("unexpected url %s", url)
}

func (f *fakeTransport) PostForm(_ context.Context, url string, form map[string]string) ([]byte, error) {
	f.calls = append(f.calls, recordedCall{url: url, form: form})
	return []byte("<html>ok</html>"), nil
}

func (f *fakeTransport) SetCookie(c *http.Cookie) { f.cookies = append(f.cookies, c) }
func (f *fakeTransport) Close()                   { f.closed = true }

func testLimiter() *Limiter {
	return NewLimiter(LimiterOptions{
		MinDelay:     0,
		MaxPerWindow: 100,
		Window:       time.Minute,
		BackoffBase:  2,
		BackoffMax:   time.Minute,
	})
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		tokenBody: `throw 'allowScriptTagRemoting is false.';
//#DWR-INSERT
//#DWR-REPLY
r.handleCallback("1","0","abc123");
`,
		trainListBody: `throw 'allowScriptTagRemoting is false.';
//#DWR-INSERT
//#DWR-REPLY
r.handleCallback("4","0",{listadoTrenes:[{listviajeViewEnlaceBean:[
{tipoTrenUno:"AVE",horaSalida:"08:30",horaLlegada:"11:15",duracionViajeTotalEnMinutos:165,tarifaMinima:"45,50",completo:false,razonNoDisponible:"",soloPlazaH:false},
{tipoTrenUno:"ALVIA",horaSalida:"14:05",horaLlegada:"18:40",duracionViajeTotalEnMinutos:275,completo:true}
]}]});
`,
	}
}

func TestGetTrains(t *testing.T) {
	ft := newFakeTransport()
	s, err := NewScraper(ScraperOptions{
		Origin:        Station{Name: "MADRID", Code: "MADRI"},
		Destination:   Station{Name: "BARCELONA", Code: "BARCE"},
		DepartureDate: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
		Limiter:       testLimiter(),
		Transport:     ft,
	})
	require.NoError(t, err)

	rides, err := s.GetTrains(context.Background())
	require.NoError(t, err)
	require.Len(t, rides, 2)

	require.Equal(t, "AVE", rides[0].TrainType)
	require.Equal(t, 45.50, rides[0].Price)
	require.True(t, rides[0].Available)
	require.False(t, rides[1].Available)

	// call sequence: search form, priming generateId, token generateId,
	// session update, train list
	require.Len(t, ft.calls, 5)
	require.Equal(t, searchURL, ft.calls[0].url)
	require.NotNil(t, ft.calls[0].form)
	require.Equal(t, "MADRI", ft.calls[0].form["cdgoOrigen"])
	require.Equal(t, "23/08/2026", ft.calls[0].form["FechaIdaSel"])
	require.Equal(t, generateIDURL, ft.calls[1].url)
	require.Equal(t, generateIDURL, ft.calls[2].url)
	require.Equal(t, updateSessionURL, ft.calls[3].url)
	require.Equal(t, trainListURL, ft.calls[4].url)

	// batch ids are consumed in order across the encoded calls
	require.Contains(t, ft.calls[1].body, "batchId=0\n")
	require.Contains(t, ft.calls[2].body, "batchId=1\n")
	require.Contains(t, ft.calls[3].body, "batchId=2\n")
	require.Contains(t, ft.calls[4].body, "batchId=3\n")

	// priming call carries no search id, the token call does
	require.NotContains(t, ft.calls[1].body, "%3Fc%3D")
	require.Contains(t, ft.calls[2].body, "%3Fc%3D"+s.sess.searchID)

	// later calls carry the composite session id derived from the token
	require.Contains(t, ft.calls[3].body, "scriptSessionId=abc123/")
	require.Contains(t, ft.calls[4].body, "scriptSessionId=abc123/")

	require.Len(t, ft.cookies, 2)
	require.Equal(t, "Search", ft.cookies[0].Name)
	require.Contains(t, ft.cookies[0].Value, "'code':'MADRI'")
	require.Equal(t, "DWRSESSIONID", ft.cookies[1].Name)
	require.Equal(t, "abc123", ft.cookies[1].Value)
	require.Equal(t, "/vol", ft.cookies[1].Path)

	require.True(t, ft.closed, "transport must be released after the scrape")
}

func TestGetTrainsRoundTrip(t *testing.T) {
	ft := newFakeTransport()
	ret := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	s, err := NewScraper(ScraperOptions{
		Origin:        Station{Name: "MADRID", Code: "MADRI"},
		Destination:   Station{Name: "BARCELONA", Code: "BARCE"},
		DepartureDate: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
		ReturnDate:    &ret,
		Limiter:       testLimiter(),
		Transport:     ft,
	})
	require.NoError(t, err)

	_, err = s.GetTrains(context.Background())
	require.NoError(t, err)

	require.Equal(t, "30/08/2026", ft.calls[0].form["FechaVueltaSel"])
	require.Contains(t, ft.calls[4].body, "c0-e9=string:30%2F08%2F2026\n")
	require.Contains(t, ft.calls[4].body, "c0-e13=string:IV\n")
}

func TestGetTrainsTokenFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.tokenBody = "<html>session expired</html>"
	limiter := testLimiter()
	s, err := NewScraper(ScraperOptions{
		Origin:        Station{Name: "MADRID", Code: "MADRI"},
		Destination:   Station{Name: "BARCELONA", Code: "BARCE"},
		DepartureDate: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
		Limiter:       limiter,
		Transport:     ft,
	})
	require.NoError(t, err)

	_, err = s.GetTrains(context.Background())
	var te *TokenError
	require.ErrorAs(t, err, &te)
	require.True(t, ft.closed, "transport must be released on failure too")
	require.Greater(t, limiter.BackoffDelay(), time.Duration(0))
}

func TestGetTrainsParseFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.trainListBody = "<html>maintenance window</html>"
	s, err := NewScraper(ScraperOptions{
		Origin:        Station{Name: "MADRID", Code: "MADRI"},
		Destination:   Station{Name: "BARCELONA", Code: "BARCE"},
		DepartureDate: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
		Limiter:       testLimiter(),
		Transport:     ft,
	})
	require.NoError(t, err)

	_, err = s.GetTrains(context.Background())
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.True(t, ft.closed)
}

func TestSearchCookieShape(t *testing.T) {
	v := searchCookie(Station{Name: "MADRID", Code: "MADRI"}, Station{Name: "BARCELONA", Code: "BARCE"})
	require.True(t, strings.HasPrefix(v, "{'origen':"))
	require.Contains(t, v, "'destino':{'code':'BARCE','name':'BARCELONA'}")
	require.Contains(t, v, "'pasajerosAdultos':1")
}
