package domain

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// CanonicalCityCount is the size of the destination list the pipeline was
// designed around. Other sizes work but are logged as suspicious.
const CanonicalCityCount = 35

// Cities is the ordered canonical city list. The 1-based position of a name is
// its stable city id. A Cities value is read-only once built.
type Cities struct {
	names []string
	ids   map[string]int
}

// NewCities builds a city list from names in canonical order. Names are
// trimmed and blank entries skipped; duplicates are rejected because they would
// make the id assignment ambiguous.
func NewCities(names []string) (Cities, error) {
	c := Cities{
		names: make([]string, 0, len(names)),
		ids:   make(map[string]int, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := c.ids[n]; dup {
			return Cities{}, fmt.Errorf("duplicate city %q in canonical list", n)
		}
		c.names = append(c.names, n)
		c.ids[n] = len(c.names)
	}
	if len(c.names) == 0 {
		return Cities{}, fmt.Errorf("canonical city list is empty")
	}
	return c, nil
}

// ParseCities reads one city name per line.
func ParseCities(r io.Reader) (Cities, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		names = append(names, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return Cities{}, fmt.Errorf("read city list: %w", err)
	}
	return NewCities(names)
}

// ID returns the canonical 1-based id for an exact, case-sensitive name match.
func (c Cities) ID(name string) (int, bool) {
	id, ok := c.ids[name]
	return id, ok
}

// Contains reports whether name is in the canonical list.
func (c Cities) Contains(name string) bool {
	_, ok := c.ids[name]
	return ok
}

// Names returns a copy of the city names in canonical order.
func (c Cities) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of cities.
func (c Cities) Len() int { return len(c.names) }

// DefaultCityNames is the destination list the project started from.
func DefaultCityNames() []string {
	return []string{
		"Mont Saint Michel", "St Malo", "Bayeux", "Le Havre", "Rouen", "Paris", "Amiens",
		"Lille", "Strasbourg", "Chateau du Haut Koenigsbourg", "Colmar", "Eguisheim",
		"Besancon", "Dijon", "Annecy", "Grenoble", "Lyon", "Gorges du Verdon",
		"Bormes les Mimosas", "Cassis", "Marseille", "Aix en Provence", "Avignon",
		"Uzes", "Nimes", "Aigues Mortes", "Saintes Maries de la mer", "Collioure",
		"Carcassonne", "Ariege", "Toulouse", "Montauban", "Biarritz", "Bayonne",
		"La Rochelle",
	}
}
