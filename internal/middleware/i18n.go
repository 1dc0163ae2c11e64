package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type languageContextKey struct{}
type countryContextKey struct{}

var (
	LanguageKey = languageContextKey{}
	CountryKey  = countryContextKey{}
)

// Generation languages, in matcher preference order.
var supportedLanguages = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
	language.Spanish,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

var countryLanguages = map[string]string{
	"BR": "pt-BR", "PT": "pt-BR", "AO": "pt-BR", "MZ": "pt-BR",
	"ES": "es", "MX": "es", "AR": "es", "CO": "es", "CL": "es", "PE": "es", "UY": "es",
}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N stores the generation language and, when known, the client country
// in the request context.
func I18N(defaultLanguage string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			lang := detectLanguage(r, defaultLanguage, country)
			ctx := context.WithValue(r.Context(), LanguageKey, lang)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLanguage(r *http.Request, fallback string, country string) string {
	if v := matchLanguage(r.Header.Get("X-Locale")); v != "" {
		return v
	}
	if v := matchLanguage(r.Header.Get("Accept-Language")); v != "" {
		return v
	}
	if country != "" {
		if v, ok := countryLanguages[country]; ok {
			return v
		}
		return "en"
	}
	if fallback != "" {
		return fallback
	}
	return "en"
}

// matchLanguage maps an Accept-Language style header to a supported
// language, or "" when nothing matches.
func matchLanguage(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, confidence := languageMatcher.Match(tags...)
	if confidence == language.No {
		return ""
	}
	return supportedLanguages[idx].String()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LanguageFromContext returns the detected generation language, or fallback
// when the request did not pass through I18N.
func LanguageFromContext(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(LanguageKey).(string); ok && v != "" {
		return v
	}
	return fallback
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}
