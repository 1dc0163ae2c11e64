package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		country  string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "es")
			},
			country: "BR",
			want:    "es",
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: "en",
		},
		{
			name: "accept-language portuguese preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "pt-BR,en;q=0.8")
			},
			want: "pt-BR",
		},
		{
			name: "unsupported accept-language falls through",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ja")
			},
			fallback: "pt-BR",
			want:     "pt-BR",
		},
		{
			name:    "country br",
			country: "BR",
			want:    "pt-BR",
		},
		{
			name:    "country mx",
			country: "MX",
			want:    "es",
		},
		{
			name:     "unknown country falls back to en",
			country:  "DE",
			fallback: "pt-BR",
			want:     "en",
		},
		{
			name:     "configured fallback",
			fallback: "es",
			want:     "es",
		},
		{
			name: "default to en",
			want: "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLanguage(req, tc.fallback, tc.country)
			if got != tc.want {
				t.Fatalf("detectLanguage() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "us")
				r.Header.Set("CF-IPCountry", "br")
			},
			want: "US",
		},
		{
			name: "locale region fallback",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "en-AU")
			},
			want: "AU",
		},
		{
			name: "accept-language region",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
			},
			want: "BR",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "mx", nil
			},
			want: "MX",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := ResolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NStoresLanguage(t *testing.T) {
	var gotLang, gotCountry string
	h := I18N("pt-BR", func(string) (string, error) { return "ar", nil })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = LanguageFromContext(r.Context(), "")
		gotCountry = CountryFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/content_plan", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if gotLang != "es" || gotCountry != "AR" {
		t.Fatalf("got language %q country %q", gotLang, gotCountry)
	}
}

func TestLanguageFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LanguageFromContext(ctx, "pt-BR"); got != "pt-BR" {
		t.Fatalf("LanguageFromContext() default = %q, want %q", got, "pt-BR")
	}
	ctx = context.WithValue(ctx, LanguageKey, "es")
	if got := LanguageFromContext(ctx, "pt-BR"); got != "es" {
		t.Fatalf("LanguageFromContext() with value = %q, want %q", got, "es")
	}
}
