// Package locale derives the catalog market and answer language from a page URL.
package locale

import (
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Pablo751/dentcb/internal/domain"
)

// DefaultCountry is used whenever the url carries no recognised country segment.
const DefaultCountry = domain.CountryFrance

// segmentCountries maps the first path segment to a market. Italy is never
// inferred from a url and is only reachable through ParseCountry.
var segmentCountries = map[string]domain.Country{
	"de": domain.CountryGermany,
	"en": domain.CountryUK,
	"us": domain.CountryUS,
	"es": domain.CountrySpain,
}

var countryLanguages = map[domain.Country]string{
	domain.CountryFrance:  "fr",
	domain.CountryUS:      "en",
	domain.CountryUK:      "en",
	domain.CountryGermany: "de",
	domain.CountrySpain:   "es",
	domain.CountryItaly:   "it",
}

// Resolve maps rawURL to a Locale. It never fails: unparsable input is
// treated as a bare path and anything unrecognised falls back to France.
func Resolve(rawURL string) domain.Locale {
	return ForCountry(countryFromPath(pathOf(rawURL)))
}

// ForCountry returns the locale of an explicitly chosen country.
func ForCountry(c domain.Country) domain.Locale {
	lang, ok := countryLanguages[c]
	if !ok {
		c = DefaultCountry
		lang = countryLanguages[c]
	}
	return domain.Locale{Country: c, LanguageCode: lang}
}

// ParseCountry matches a country name case-insensitively. Path codes such as
// "de" or "en" are accepted too.
func ParseCountry(name string) (domain.Country, bool) {
	name = strings.TrimSpace(name)
	for _, c := range domain.Countries {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	if c, ok := segmentCountries[strings.ToLower(name)]; ok {
		return c, true
	}
	if strings.EqualFold(name, "it") {
		return domain.CountryItaly, true
	}
	return "", false
}

// LanguageName renders a language code as an English name, e.g. "fr" -> "French".
// Unknown codes are returned unchanged.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}

func pathOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	return u.Path
}

func countryFromPath(p string) domain.Country {
	segment, _, _ := strings.Cut(strings.Trim(p, "/"), "/")
	if c, ok := segmentCountries[segment]; ok {
		return c
	}
	return DefaultCountry
}
