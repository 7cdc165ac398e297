package stations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, c.All())
	for _, s := range c.All() {
		require.NotEmpty(t, s.Name)
		require.NotEmpty(t, s.Code)
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "malaga", normalizeName("Málaga"))
	require.Equal(t, "malaga", normalizeName("  MALAGA "))
	require.Equal(t, "a coruna", normalizeName("A Coruña"))
}

func TestFindExact(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	s, ok := c.Find("MADRID")
	require.True(t, ok)
	require.Equal(t, "MADRI", s.Code)

	s, ok = c.Find("málaga")
	require.True(t, ok)
	require.Equal(t, "MALAG", s.Code)
}

func TestFindSubstring(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	s, ok := c.Find("atocha")
	require.True(t, ok)
	require.Equal(t, "60000", s.Code)
}

func TestFindFuzzy(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	s, ok := c.Find("barcelonna")
	require.True(t, ok)
	require.Equal(t, "BARCE", s.Code)

	_, ok = c.Find("atlantis central")
	require.False(t, ok)

	_, ok = c.Find("")
	require.False(t, ok)
}

func TestSearch(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	results := c.Search("madrid", 5)
	require.NotEmpty(t, results)
	require.LessOrEqual(t, len(results), 5)
	require.Equal(t, "MADRI", results[0].Code)

	require.Empty(t, c.Search("", 5))
	require.Empty(t, c.Search("madrid", 0))
}
