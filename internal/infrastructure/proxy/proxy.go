package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/apascualco/cinemesh/internal/infrastructure/http/middleware"
	"github.com/gin-gonic/gin"
)

// Unavailable is the reply sent instead of a response when a service has no
// reachable instance.
type Unavailable struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
}

// ProxyHandler forwards gateway traffic to one instance of the service a
// route names, resolved through discovery and ordered by the balancer.
type ProxyHandler struct {
	routes       []Route
	lookup       domain.Lookup
	loadBalancer application.LoadBalancer
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*ProxyHandler)

func WithLogger(logger *slog.Logger) Option {
	return func(p *ProxyHandler) {
		p.logger = logger
	}
}

func NewProxyHandler(routes []Route, lookup domain.Lookup, lb application.LoadBalancer, opts ...Option) *ProxyHandler {
	p := &ProxyHandler{
		routes:       routes,
		lookup:       lookup,
		loadBalancer: lb,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ProxyHandler) Handle(c *gin.Context) {
	route, ok := MatchRoute(p.routes, c.Request.URL.Path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "route_not_found",
			"message": "no service routed for this path",
		})
		return
	}

	instances := p.loadBalancer.Order(p.lookup.Resolve(c.Request.Context(), route.Service))
	if len(instances) == 0 {
		p.fallback(c, route.Service, "no instances")
		return
	}
	instance := instances[0]

	target, err := url.Parse(instance.BaseURL())
	if err != nil {
		p.fallback(c, route.Service, err.Error())
		return
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host

			if c.Request.Host != "" {
				req.Header.Set("X-Forwarded-Host", c.Request.Host)
			}
			proto := "http"
			if c.Request.TLS != nil {
				proto = "https"
			}
			if forwardedProto := c.GetHeader("X-Forwarded-Proto"); forwardedProto != "" {
				proto = forwardedProto
			}
			req.Header.Set("X-Forwarded-Proto", proto)

			if requestID := c.GetString(middleware.ContextKeyRequestID); requestID != "" {
				req.Header.Set(middleware.HeaderRequestID, requestID)
			}
			req.Header.Set("X-Forwarded-Service", route.Service)
		},
		ModifyResponse: func(resp *http.Response) error {
			// The gateway already answered with its own request id.
			resp.Header.Del(middleware.HeaderRequestID)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.fallback(c, route.Service, err.Error())
		},
	}

	p.logger.Debug("proxying request",
		"service", route.Service,
		"instance", instance.ID,
		"path", c.Request.URL.Path,
	)
	proxy.ServeHTTP(c.Writer, c.Request)
}

func (p *ProxyHandler) fallback(c *gin.Context, service, reason string) {
	p.logger.Warn("service unavailable, serving fallback",
		"service", service,
		"path", c.Request.URL.Path,
		"reason", reason,
	)
	c.JSON(http.StatusServiceUnavailable, unavailable(service, p.now()))
}

func unavailable(service string, now time.Time) Unavailable {
	name := displayName(service)
	return Unavailable{
		Error:     name + " Unavailable",
		Message:   name + " is temporarily unavailable. Please try again later.",
		Timestamp: now,
		Status:    http.StatusServiceUnavailable,
	}
}

// displayName turns movie-service into Movie Service.
func displayName(service string) string {
	words := strings.FieldsFunc(service, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
