package client

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/maumercado/taskboard-go/internal/session"
)

// Option configures the board client.
type Option func(*options)

type options struct {
	session    *session.Session
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	rateLimit  rate.Limit
	burst      int
	jar        http.CookieJar
	socketURL  string
	dialer     *websocket.Dialer
}

func defaultOptions() *options {
	return &options{
		timeout: 30 * time.Second,
		headers: make(map[string]string),
		burst:   1,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// WithSession sets the session whose token authenticates requests.
func WithSession(s *session.Session) Option {
	return func(o *options) {
		o.session = s
	}
}

// WithHTTPClient provides a custom HTTP client. Its transport is wrapped,
// not replaced.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout sets the default timeout for HTTP requests.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHeader adds a custom header to all requests.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers[key] = value
	}
}

// WithRateLimit throttles outgoing requests to rps per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rate.Limit(rps)
		if burst > 0 {
			o.burst = burst
		}
	}
}

// WithCookieJar sets the jar holding the CSRF cookie.
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) {
		o.jar = jar
	}
}

// WithSocketURL sets the base URL of the realtime relay.
func WithSocketURL(u string) Option {
	return func(o *options) {
		o.socketURL = u
	}
}

// WithDialer overrides the websocket dialer used by sockets.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}
