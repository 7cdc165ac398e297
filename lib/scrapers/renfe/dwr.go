package renfe

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mazen160/go-random"
)

// The remote-call grammar below is reverse-engineered once and fixed:
// the front end speaks DWR (Direct Web Remoting), a browser-originated
// POST convention that simulates calling a named server method through
// a line-oriented key=value request body.

const tokenAlphabet = "1234567890abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ*$"

// tokenify converts a non-negative integer into DWR's compact base-64
// representation. Digits are appended least-significant first and
// never reversed; zero encodes to the empty string, callers that need
// a non-empty token must special-case it.
func tokenify(n int64) string {
	var buf strings.Builder
	for n > 0 {
		buf.WriteByte(tokenAlphabet[n&0x3f])
		n /= 64
	}
	return buf.String()
}

// newSearchID returns "_" plus four crypto-random alphanumeric
// characters. Predictable search ids would let a third party interfere
// with the target's search indexing, so the draw must not come from a
// seeded PRNG.
func newSearchID() (string, error) {
	suffix, err := random.String(4)
	if err != nil {
		return "", err
	}
	return "_" + suffix, nil
}

// newScriptSessionID derives the composite session id the DWR calls
// carry after token acquisition: token/dateToken-randomToken.
func newScriptSessionID(token string, now time.Time) (string, error) {
	r, err := random.IntRange(1, 1<<53)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s-%s", token, tokenify(now.UnixMilli()), tokenify(int64(r))), nil
}

const searchPageRef = "page=%2Fvol%2FbuscarTrenEnlaces.do"

func pageLine(searchID string) string {
	if searchID == "" {
		return searchPageRef + "\n"
	}
	return searchPageRef + "%3Fc%3D" + searchID + "\n"
}

// buildGenerateIDPayload covers both generateId calls. The priming
// call carries no search id and a bare page reference; the second
// attaches the search id so the callback of that call carries a usable
// token.
func buildGenerateIDPayload(batchID int, searchID string) string {
	return "callCount=1\n" +
		"c0-scriptName=__System\n" +
		"c0-methodName=generateId\n" +
		"c0-id=0\n" +
		fmt.Sprintf("batchId=%d\n", batchID) +
		"instanceId=0\n" +
		pageLine(searchID) +
		"scriptSessionId=\n" +
		"windowName=\n"
}

// buildUpdateSessionPayload declares the search id once and references
// it twice inside a two-element array argument, mirroring the target's
// scalar-declaration encoding.
func buildUpdateSessionPayload(batchID int, searchID, scriptSessionID string) string {
	return "callCount=1\n" +
		"windowName=\n" +
		"c0-scriptName=buyEnlacesManager\n" +
		"c0-methodName=actualizaObjetosSesion\n" +
		"c0-id=0\n" +
		fmt.Sprintf("c0-e1=string:%s\n", searchID) +
		"c0-e2=string:\n" +
		"c0-param0=array:[reference:c0-e1,reference:c0-e2]\n" +
		fmt.Sprintf("batchId=%d\n", batchID) +
		"instanceId=0\n" +
		pageLine(searchID) +
		fmt.Sprintf("scriptSessionId=%s\n", scriptSessionID)
}

// buildTrainListPayload packages the fourteen search facets into a
// single composite object argument. Dates come percent-encoded in
// DD/MM/YYYY; an empty return date makes the search one-way ("I"),
// otherwise round-trip ("IV").
func buildTrainListPayload(batchID int, searchID, scriptSessionID, departureDate, returnDate string) string {
	trip := "I"
	if returnDate != "" {
		trip = "IV"
	}

	return "callCount=1\n" +
		"windowName=\n" +
		"c0-scriptName=trainEnlacesManager\n" +
		"c0-methodName=getTrainsList\n" +
		"c0-id=0\n" +
		"c0-e1=string:false\n" +
		"c0-e2=string:false\n" +
		"c0-e3=string:false\n" +
		"c0-e4=string:\n" +
		"c0-e5=string:\n" +
		"c0-e6=string:\n" +
		"c0-e7=string:\n" +
		fmt.Sprintf("c0-e8=string:%s\n", url.QueryEscape(departureDate)) +
		fmt.Sprintf("c0-e9=string:%s\n", url.QueryEscape(returnDate)) +
		"c0-e10=string:1\n" +
		"c0-e11=string:0\n" +
		"c0-e12=string:0\n" +
		fmt.Sprintf("c0-e13=string:%s\n", trip) +
		"c0-e14=string:\n" +
		"c0-param0=Object_Object:{atendo:reference:c0-e1, sinEnlace:reference:c0-e2, " +
		"plazaH:reference:c0-e3, tipoFranjaI:reference:c0-e4, tipoFranjaV:reference:c0-e5, " +
		"horaFranjaIda:reference:c0-e6, horaFranjaVuelta:reference:c0-e7, fechaSalida:reference" +
		":c0-e8, fechaVuelta:reference:c0-e9, adultos:reference:c0-e10, ninos:reference:c0-e11," +
		" ninosMenores:reference:c0-e12, trayecto:reference:c0-e13, idaVuelta:reference:c0-e14}" +
		"\n" +
		fmt.Sprintf("batchId=%d\n", batchID) +
		"instanceId=0\n" +
		pageLine(searchID) +
		fmt.Sprintf("scriptSessionId=%s\n", scriptSessionID)
}
