package proxy

import (
	"fmt"
	"strings"
)

// Route sends every request whose path matches Pattern to Service. A "*"
// segment matches one path segment and a trailing "**" matches the rest,
// including nothing.
type Route struct {
	Pattern string
	Service string
}

func DefaultRoutes() []Route {
	return []Route{
		{Pattern: "/api/movies/**", Service: "movie-service"},
		{Pattern: "/api/bookings/**", Service: "booking-service"},
		{Pattern: "/api/payments/**", Service: "payment-service"},
	}
}

// ParseRoutes reads comma-separated pattern=service pairs, e.g.
// "/api/movies/**=movie-service,/api/bookings/**=booking-service".
func ParseRoutes(raw string) ([]Route, error) {
	var routes []Route
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pattern, service, ok := strings.Cut(entry, "=")
		pattern, service = strings.TrimSpace(pattern), strings.TrimSpace(service)
		if !ok || service == "" || !strings.HasPrefix(pattern, "/") {
			return nil, fmt.Errorf("invalid gateway route %q, want /pattern=service", entry)
		}
		if i := strings.Index(pattern, "**"); i >= 0 && i != len(pattern)-2 {
			return nil, fmt.Errorf("invalid gateway route %q, ** must be the last segment", entry)
		}
		routes = append(routes, Route{Pattern: pattern, Service: service})
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no gateway routes in %q", raw)
	}
	return routes, nil
}

// MatchRoute returns the first route matching path, in declaration order.
func MatchRoute(routes []Route, path string) (Route, bool) {
	for _, r := range routes {
		if matchPattern(r.Pattern, path) {
			return r, true
		}
	}
	return Route{}, false
}

func matchPattern(pattern, path string) bool {
	patternSegments := segments(pattern)
	pathSegments := segments(path)

	for i, patternSeg := range patternSegments {
		if patternSeg == "**" {
			return true
		}
		if i >= len(pathSegments) {
			return false
		}
		if patternSeg != "*" && patternSeg != pathSegments[i] {
			return false
		}
	}
	return len(patternSegments) == len(pathSegments)
}

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
