package client

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/maumercado/taskboard-go/internal/logger"
	"github.com/maumercado/taskboard-go/internal/metrics"
	"github.com/maumercado/taskboard-go/internal/session"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
)

// roundTripFunc lets a plain function act as an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// csrfSafeMethod reports whether method needs no CSRF protection.
func csrfSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func sameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

// cloneRequest returns a shallow copy with its own header map, as
// RoundTrippers must not modify the caller's request.
func cloneRequest(req *http.Request) *http.Request {
	return req.Clone(req.Context())
}

// headerTransport sets static headers on every request.
func headerTransport(next http.RoundTripper, headers map[string]string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req = cloneRequest(req)
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return next.RoundTrip(req)
	})
}

// authTransport attaches "Authorization: Token <t>" exactly while the
// session is authenticated.
func authTransport(next http.RoundTripper, s *session.Session) http.RoundTripper {
	src := s.TokenSource()
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if !s.Authenticated() {
			return next.RoundTrip(req)
		}
		tok, err := src.Token()
		if err != nil {
			// Logged out between the check and the read
			return next.RoundTrip(req)
		}
		req = cloneRequest(req)
		tok.SetAuthHeader(req)
		return next.RoundTrip(req)
	})
}

// csrfTransport echoes the csrftoken cookie into X-CSRFToken on unsafe
// requests to the API's own origin. Cross-origin requests never get it.
func csrfTransport(next http.RoundTripper, jar http.CookieJar, origin *url.URL) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if csrfSafeMethod(req.Method) || jar == nil || !sameOrigin(req.URL, origin) {
			return next.RoundTrip(req)
		}
		for _, c := range jar.Cookies(req.URL) {
			if c.Name == csrfCookieName {
				req = cloneRequest(req)
				req.Header.Set(csrfHeaderName, c.Value)
				break
			}
		}
		return next.RoundTrip(req)
	})
}

// limitTransport waits for the limiter before each request.
func limitTransport(next http.RoundTripper, limiter *rate.Limiter) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if err := limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
		return next.RoundTrip(req)
	})
}

// instrumentTransport logs and records every request.
func instrumentTransport(next http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(req)
		duration := time.Since(start)

		status := "error"
		if resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		metrics.RecordClientRequest(req.Method, status, duration.Seconds())

		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Str("status", status).
			Dur("duration", duration).
			Msg("board api request")

		return resp, err
	})
}

// buildTransport assembles the interceptor chain around base.
func buildTransport(base http.RoundTripper, o *options, origin *url.URL) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := headerTransport(base, o.headers)
	rt = csrfTransport(rt, o.jar, origin)
	rt = authTransport(rt, o.session)
	rt = instrumentTransport(rt)
	if o.rateLimit > 0 {
		rt = limitTransport(rt, rate.NewLimiter(o.rateLimit, o.burst))
	}
	return rt
}
