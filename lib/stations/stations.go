// Package stations resolves human station names to the operator's
// booking codes. The embedded catalog is a snapshot; codes are stable
// but new stations require regenerating stations.json.
package stations

import (
	_ "embed"
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"railfare-backend/lib/scrapers/renfe"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed stations.json
var catalogJSON []byte

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy
// match. Below it a typo'd query returns nothing rather than a wrong
// station.
const fuzzyThreshold = 0.93

type Catalog struct {
	stations   []renfe.Station
	normalized []string
}

// normalizeName lowercases and strips diacritics so "Málaga",
// "MALAGA" and "malaga" all compare equal.
func normalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

func Load() (*Catalog, error) {
	var list []renfe.Station
	if err := json.Unmarshal(catalogJSON, &list); err != nil {
		return nil, err
	}
	c := &Catalog{stations: list}
	for _, s := range list {
		c.normalized = append(c.normalized, normalizeName(s.Name))
	}
	return c, nil
}

func (c *Catalog) All() []renfe.Station {
	out := make([]renfe.Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// Find resolves a name to a station, trying exact, then substring,
// then fuzzy matching. The second return is false when nothing matches
// confidently.
func (c *Catalog) Find(name string) (renfe.Station, bool) {
	query := normalizeName(name)
	if query == "" {
		return renfe.Station{}, false
	}

	for i, n := range c.normalized {
		if n == query {
			return c.stations[i], true
		}
	}
	for i, n := range c.normalized {
		if strings.Contains(n, query) {
			return c.stations[i], true
		}
	}

	best := -1
	var bestSimilarity float64
	for i, n := range c.normalized {
		similarity := matchr.JaroWinkler(query, n, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = i
		}
	}
	if best >= 0 && bestSimilarity >= fuzzyThreshold {
		return c.stations[best], true
	}
	return renfe.Station{}, false
}

// Search returns up to limit stations ranked by similarity to the
// query, substring matches first.
func (c *Catalog) Search(name string, limit int) []renfe.Station {
	query := normalizeName(name)
	if query == "" || limit <= 0 {
		return nil
	}

	type scored struct {
		station    renfe.Station
		similarity float64
		substring  bool
	}
	var matches []scored
	for i, n := range c.normalized {
		matches = append(matches, scored{
			station:    c.stations[i],
			similarity: matchr.JaroWinkler(query, n, false),
			substring:  strings.Contains(n, query),
		})
	}
	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].substring != matches[b].substring {
			return matches[a].substring
		}
		return matches[a].similarity > matches[b].similarity
	})

	var out []renfe.Station
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		if !m.substring && m.similarity < 0.7 {
			continue
		}
		out = append(out, m.station)
	}
	return out
}
