package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/maumercado/taskboard-go/internal/board"
	"github.com/maumercado/taskboard-go/internal/session"
)

// Root is the API root document listing the collection endpoints.
type Root struct {
	Sprints string `json:"sprints"`
	Tasks   string `json:"tasks"`
	Users   string `json:"users"`
}

// Client talks to the board API and caches what it fetched.
type Client struct {
	apiRoot *url.URL
	http    *http.Client
	opts    *options
	session *session.Session

	mu    sync.Mutex
	ready *Future[Root]

	Sprints *Sprints
	Tasks   *Tasks
	Users   *Users
}

// New creates a client for the API rooted at apiRoot.
func New(apiRoot string, opts ...Option) (*Client, error) {
	root, err := url.Parse(apiRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid api root: %w", err)
	}
	if root.Scheme == "" || root.Host == "" {
		return nil, fmt.Errorf("invalid api root: %q is not absolute", apiRoot)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.session == nil {
		o.session, err = session.New(context.Background(), nil)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{Timeout: o.timeout}
	if o.httpClient != nil {
		clone := *o.httpClient
		httpClient = &clone
		if o.timeout > 0 {
			httpClient.Timeout = o.timeout
		}
	}
	if o.jar == nil {
		o.jar = httpClient.Jar
	}
	if o.jar == nil {
		o.jar, _ = cookiejar.New(nil)
	}
	httpClient.Jar = o.jar
	httpClient.Transport = buildTransport(httpClient.Transport, o, root)

	c := &Client{
		apiRoot: root,
		http:    httpClient,
		opts:    o,
		session: o.session,
	}

	c.Sprints = &Sprints{Repository: newRepository(c, "sprint", board.SprintKey, board.SprintLinks,
		func(r Root) string { return r.Sprints })}
	c.Tasks = &Tasks{Repository: newRepository(c, "task", board.TaskKey, board.TaskLinks,
		func(r Root) string { return r.Tasks })}
	c.Users = &Users{Repository: newRepository(c, "user", board.UserKey, board.UserLinks,
		func(r Root) string { return r.Users })}

	return c, nil
}

// Session returns the session authenticating the client.
func (c *Client) Session() *session.Session {
	return c.session
}

// Ready returns the discovery future, starting discovery if needed.
// Concurrent callers share one request. A failed discovery is retried by
// the next caller.
func (c *Client) Ready() *Future[Root] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready != nil && (!c.ready.Settled() || c.ready.Err() == nil) {
		return c.ready
	}

	f := newFuture[Root]()
	c.ready = f
	go func() {
		var root Root
		err := c.getJSON(context.Background(), c.apiRoot.String(), nil, &root)
		if err != nil {
			err = fmt.Errorf("api discovery failed: %w", err)
		}
		f.resolve(root, err)
	}()
	return f
}

// Discover waits for the API root document.
func (c *Client) Discover(ctx context.Context) (Root, error) {
	return c.Ready().Get(ctx)
}

// resolve turns a possibly relative link into an absolute URL.
func (c *Client) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return c.apiRoot.ResolveReference(u), nil
}

func (c *Client) getJSON(ctx context.Context, ref string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, ref, query, nil, out)
}

// do sends one request. in is encoded as the JSON body when non-nil; out
// receives the decoded response unless the API returned no content.
func (c *Client) do(ctx context.Context, method, ref string, query url.Values, in, out interface{}) error {
	u, err := c.resolve(ref)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     method,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// socketURL joins the relay base URL and a sprint id.
func (c *Client) socketURL(sprint string) (string, error) {
	base := c.opts.socketURL
	if base == "" {
		u := *c.apiRoot
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		default:
			u.Scheme = "ws"
		}
		u.Path, u.RawQuery = "", ""
		base = u.String()
	}
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("invalid socket url: %w", err)
	}
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(sprint), nil
}

// NewSocket creates an unopened socket to the relay channel of sprint. The
// handshake carries the session token when one is held.
func (c *Client) NewSocket(sprint string) (*Socket, error) {
	server, err := c.socketURL(sprint)
	if err != nil {
		return nil, err
	}
	return NewSocket(server,
		WithSocketDialer(c.opts.dialer),
		WithSocketHeader(func() http.Header {
			h := http.Header{}
			if tok, err := c.session.TokenSource().Token(); err == nil {
				h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
			}
			return h
		}),
	), nil
}
