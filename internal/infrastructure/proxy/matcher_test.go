package proxy

import (
	"testing"
)

func TestMatchRoute(t *testing.T) {
	routes := DefaultRoutes()

	tests := []struct {
		name        string
		path        string
		wantService string
		wantMatch   bool
	}{
		{"movie session", "/api/movies/sessions/sess-1001", "movie-service", true},
		{"movies root", "/api/movies", "movie-service", true},
		{"bookings list", "/api/bookings", "booking-service", true},
		{"booking cancel", "/api/bookings/bk-1003/cancel", "booking-service", true},
		{"payment by booking", "/api/payments/booking/bk-1001", "payment-service", true},
		{"prefix of a segment", "/api/moviesx/1", "", false},
		{"other api", "/api/users/1", "", false},
		{"root", "/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, ok := MatchRoute(routes, tt.path)
			if ok != tt.wantMatch {
				t.Fatalf("match: expected %v, got %v", tt.wantMatch, ok)
			}
			if route.Service != tt.wantService {
				t.Errorf("expected service %q, got %q", tt.wantService, route.Service)
			}
		})
	}
}

func TestMatchRoute_FirstDeclaredWins(t *testing.T) {
	routes := []Route{
		{Pattern: "/api/bookings/health/**", Service: "booking-health"},
		{Pattern: "/api/bookings/**", Service: "booking-service"},
	}

	route, ok := MatchRoute(routes, "/api/bookings/health/dependencies")
	if !ok || route.Service != "booking-health" {
		t.Errorf("expected booking-health, got %+v (matched %v)", route, ok)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		path      string
		wantMatch bool
	}{
		{"exact", "/health", "/health", true},
		{"exact mismatch", "/health", "/ready", false},
		{"single wildcard", "/api/*/health", "/api/bookings/health", true},
		{"single wildcard needs a segment", "/api/*/health", "/api/health", false},
		{"trailing double wildcard", "/static/**", "/static/css/style.css", true},
		{"double wildcard matches nothing", "/static/**", "/static", true},
		{"longer path", "/users/*", "/users/1/posts", false},
		{"trailing slash", "/api/bookings/**", "/api/bookings/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchPattern(tt.pattern, tt.path); got != tt.wantMatch {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.wantMatch)
			}
		})
	}
}

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes(" /api/movies/**=movie-service , /api/bookings/**=booking-service,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[1] != (Route{Pattern: "/api/bookings/**", Service: "booking-service"}) {
		t.Errorf("unexpected route %+v", routes[1])
	}

	for _, raw := range []string{"", "/api/movies/**", "api/movies=movie-service", "/api/**/x=svc", "/api/movies/**="} {
		if _, err := ParseRoutes(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}
