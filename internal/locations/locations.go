// Package locations maps project countries and devices onto the codes the
// ranking provider expects. It is the single lookup shared by every call site
// that builds provider requests.
package locations

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"rankwatch/internal/config"
	"rankwatch/internal/models"
)

var (
	ErrUnknownCountry = errors.New("unknown country")
	ErrUnknownDevice  = errors.New("unknown device")
)

// Location is the provider representation of a country.
type Location struct {
	Country      string
	LocationCode int
	Language     string
}

// Params are the resolved provider request parameters for one keyword.
type Params struct {
	LocationCode int
	Language     string
	Device       string
}

var defaults = []Location{
	{"us", 2840, "en"},
	{"gb", 2826, "en"},
	{"ca", 2124, "en"},
	{"au", 2036, "en"},
	{"ie", 2372, "en"},
	{"nz", 2554, "en"},
	{"in", 2356, "en"},
	{"za", 2710, "en"},
	{"de", 2276, "de"},
	{"at", 2040, "de"},
	{"ch", 2756, "de"},
	{"fr", 2250, "fr"},
	{"be", 2056, "fr"},
	{"es", 2724, "es"},
	{"mx", 2484, "es"},
	{"it", 2380, "it"},
	{"nl", 2528, "nl"},
	{"pt", 2620, "pt"},
	{"br", 2076, "pt"},
	{"se", 2752, "sv"},
	{"dk", 2208, "da"},
	{"no", 2578, "nb"},
	{"fi", 2246, "fi"},
	{"pl", 2616, "pl"},
	{"jp", 2392, "ja"},
}

// aliases normalises common non-ISO spellings.
var aliases = map[string]string{
	"uk": "gb",
}

// Table is a concurrency-safe country lookup.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Location
}

// NewTable returns a table seeded with the built-in locations.
func NewTable() *Table {
	t := &Table{entries: make(map[string]Location, len(defaults))}
	for _, l := range defaults {
		t.entries[l.Country] = l
	}
	return t
}

// Apply adds or replaces entries from YAML configuration.
func (t *Table) Apply(overrides []config.LocationConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, o := range overrides {
		country := normalizeCountry(o.Country)
		if country == "" || o.LocationCode <= 0 {
			return fmt.Errorf("invalid location override %+v", o)
		}
		lang := o.Language
		if lang == "" {
			lang = "en"
		}
		t.entries[country] = Location{Country: country, LocationCode: o.LocationCode, Language: lang}
	}
	return nil
}

// Lookup returns the location for an ISO country code.
func (t *Table) Lookup(country string) (Location, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.entries[normalizeCountry(country)]
	return l, ok
}

// Resolve maps a keyword's country, device and optional project language to
// provider parameters.
func (t *Table) Resolve(country, device, language string) (Params, error) {
	loc, ok := t.Lookup(country)
	if !ok {
		return Params{}, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}

	dev := strings.ToLower(strings.TrimSpace(device))
	switch dev {
	case "":
		dev = models.DeviceDesktop
	case models.DeviceDesktop, models.DeviceMobile:
	default:
		return Params{}, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}

	lang := loc.Language
	if language != "" {
		lang = strings.ToLower(language)
	}

	return Params{LocationCode: loc.LocationCode, Language: lang, Device: dev}, nil
}

func normalizeCountry(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if a, ok := aliases[c]; ok {
		return a
	}
	return c
}
