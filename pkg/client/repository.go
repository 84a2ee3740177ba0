package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/maumercado/taskboard-go/internal/board"
	"github.com/maumercado/taskboard-go/internal/logger"
)

// FetchOptions controls a list fetch.
type FetchOptions struct {
	// URL overrides the collection endpoint, e.g. a links.tasks reference.
	URL string
	// Query is merged into the request query string.
	Query url.Values
	// Remove drops cached records absent from the response.
	Remove bool
}

// Repository binds a Collection to its REST endpoint.
type Repository[T any] struct {
	*Collection[T]

	client     *Client
	model      string
	links      func(T) board.Links
	collection func(Root) string

	mu       sync.Mutex
	inflight map[string]*Future[T]
}

func newRepository[T any](c *Client, model string, key KeyFunc[T], links func(T) board.Links, collection func(Root) string) *Repository[T] {
	return &Repository[T]{
		Collection: NewCollection(key),
		client:     c,
		model:      model,
		links:      links,
		collection: collection,
		inflight:   make(map[string]*Future[T]),
	}
}

// Model is the name the API and socket use for T.
func (r *Repository[T]) Model() string {
	return r.model
}

// URL returns the collection endpoint, discovering it on first use.
func (r *Repository[T]) URL(ctx context.Context) (string, error) {
	root, err := r.client.Discover(ctx)
	if err != nil {
		return "", err
	}
	u := r.collection(root)
	if u == "" {
		return "", fmt.Errorf("%w: no %s collection", ErrNotDiscovered, r.model)
	}
	return u, nil
}

func (r *Repository[T]) itemURL(ctx context.Context, key string) (string, error) {
	base, err := r.URL(ctx)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + url.PathEscape(key) + "/", nil
}

// recordURL prefers the record's self link over a constructed route.
func (r *Repository[T]) recordURL(ctx context.Context, item T) (string, error) {
	if self := r.links(item).Self(); self != "" {
		return self, nil
	}
	return r.itemURL(ctx, r.Key(item))
}

// fetchPage reads one page and records its paging state. The cache itself
// is left alone.
func (r *Repository[T]) fetchPage(ctx context.Context, ref string, query url.Values) ([]T, string, error) {
	var page Page[T]
	if err := r.client.getJSON(ctx, ref, query, &page); err != nil {
		return nil, "", err
	}
	return r.Parse(page), deref(page.Next), nil
}

// Fetch loads one page of records into the cache and returns them.
func (r *Repository[T]) Fetch(ctx context.Context, opts FetchOptions) ([]T, error) {
	ref := opts.URL
	if ref == "" {
		var err error
		if ref, err = r.URL(ctx); err != nil {
			return nil, err
		}
	}

	items, _, err := r.fetchPage(ctx, ref, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s list: %w", r.model, err)
	}
	r.Merge(items, opts.Remove)
	return items, nil
}

// FetchAll follows next links until the last page. The cache is updated once
// all pages have arrived.
func (r *Repository[T]) FetchAll(ctx context.Context, opts FetchOptions) ([]T, error) {
	ref := opts.URL
	if ref == "" {
		var err error
		if ref, err = r.URL(ctx); err != nil {
			return nil, err
		}
	}

	var all []T
	query := opts.Query
	for ref != "" {
		items, next, err := r.fetchPage(ctx, ref, query)
		if err != nil {
			return nil, fmt.Errorf("fetch %s list: %w", r.model, err)
		}
		all = append(all, items...)
		// next already carries the query
		ref, query = next, nil
	}
	if all == nil {
		all = []T{}
	}
	r.Merge(all, opts.Remove)
	return all, nil
}

// GetOrFetch returns the cached record for key, fetching it when missing.
// Concurrent calls for one key share a request. Failures are returned as
// *FetchError and leave nothing cached.
func (r *Repository[T]) GetOrFetch(ctx context.Context, key string) (T, error) {
	if item, ok := r.Get(key); ok {
		return item, nil
	}

	r.mu.Lock()
	f, ok := r.inflight[key]
	if !ok {
		f = newFuture[T]()
		r.inflight[key] = f
		go func() {
			item, err := r.fetchOne(context.WithoutCancel(ctx), key)
			r.mu.Lock()
			delete(r.inflight, key)
			r.mu.Unlock()
			f.resolve(item, err)
		}()
	}
	r.mu.Unlock()

	return f.Get(ctx)
}

func (r *Repository[T]) fetchOne(ctx context.Context, key string) (T, error) {
	var item T
	ref, err := r.itemURL(ctx, key)
	if err == nil {
		err = r.client.getJSON(ctx, ref, nil, &item)
	}
	if err != nil {
		log := logger.WithModel(r.model, key)
		log.Debug().Err(err).Msg("fetch failed")
		var zero T
		return zero, &FetchError{Model: r.model, Key: key, Err: err}
	}
	r.Set(item)
	return item, nil
}

// Refresh re-reads the record for key from the API, cached or not.
func (r *Repository[T]) Refresh(ctx context.Context, key string) (T, error) {
	ref := ""
	if item, ok := r.Get(key); ok {
		ref = r.links(item).Self()
	}
	if ref == "" {
		return r.fetchOne(ctx, key)
	}

	var item T
	if err := r.client.getJSON(ctx, ref, nil, &item); err != nil {
		var zero T
		return zero, &FetchError{Model: r.model, Key: key, Err: err}
	}
	r.Set(item)
	return item, nil
}

// Save writes item with PUT and caches the server's version.
func (r *Repository[T]) Save(ctx context.Context, item T) (T, error) {
	ref, err := r.recordURL(ctx, item)
	if err != nil {
		return item, err
	}

	var saved T
	if err := r.client.do(ctx, http.MethodPut, ref, nil, item, &saved); err != nil {
		return item, fmt.Errorf("save %s %s: %w", r.model, r.Key(item), err)
	}
	r.Set(saved)
	return saved, nil
}

// Create POSTs item to the collection and caches the created record.
func (r *Repository[T]) Create(ctx context.Context, item T) (T, error) {
	ref, err := r.URL(ctx)
	if err != nil {
		return item, err
	}

	var created T
	if err := r.client.do(ctx, http.MethodPost, ref, nil, item, &created); err != nil {
		return item, fmt.Errorf("create %s: %w", r.model, err)
	}
	r.Set(created)
	return created, nil
}

// Delete removes the record on the API and from the cache. A 404 counts as
// already deleted.
func (r *Repository[T]) Delete(ctx context.Context, key string) error {
	var (
		ref string
		err error
	)
	if item, ok := r.Get(key); ok {
		ref, err = r.recordURL(ctx, item)
	} else {
		ref, err = r.itemURL(ctx, key)
	}
	if err != nil {
		return err
	}

	if err := r.client.do(ctx, http.MethodDelete, ref, nil, nil, nil); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete %s %s: %w", r.model, key, err)
	}
	r.Remove(key)
	return nil
}
