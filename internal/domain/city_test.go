package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCities(t *testing.T) {
	c, err := ParseCities(strings.NewReader("Paris\n  Lyon  \n\nSt Malo\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Paris", "Lyon", "St Malo"}, c.Names())
	assert.Equal(t, 3, c.Len())

	id, ok := c.ID("Lyon")
	require.True(t, ok)
	assert.Equal(t, 2, id)

	_, ok = c.ID("lyon")
	assert.False(t, ok, "lookup is case-sensitive")
	assert.True(t, c.Contains("St Malo"))
}

func TestNewCities_Errors(t *testing.T) {
	_, err := NewCities([]string{"Paris", "Lyon", "Paris"})
	require.ErrorContains(t, err, "duplicate city")

	_, err = NewCities([]string{" ", ""})
	require.ErrorContains(t, err, "empty")
}

func TestCities_NamesIsCopy(t *testing.T) {
	c := testCities(t, "Paris", "Lyon")
	names := c.Names()
	names[0] = "Changed"

	assert.Equal(t, "Paris", c.Names()[0])
}

func TestDefaultCityNames(t *testing.T) {
	c, err := NewCities(DefaultCityNames())
	require.NoError(t, err)
	assert.Equal(t, CanonicalCityCount, c.Len())

	id, ok := c.ID("Mont Saint Michel")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = c.ID("La Rochelle")
	require.True(t, ok)
	assert.Equal(t, 35, id)
}

func TestSuggestCity(t *testing.T) {
	cities := testCities(t, DefaultCityNames()...)

	got, sim, ok := SuggestCity("St. Malo", cities)
	require.True(t, ok)
	assert.Equal(t, "St Malo", got)
	assert.Greater(t, sim, 0.85)

	_, _, ok = SuggestCity("Qwxzvy", cities)
	assert.False(t, ok)
}
