// Package portal harvests open-data portal pages. One portal page can
// expose several datasets through its bootstrap payload, so the page is
// fetched once per run and shared; each dataset then reads its own node,
// either as an embedded table or through a date-windowed download URL.
package portal

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
	"github.com/custodia-labs/harvester/internal/extract"
	"github.com/custodia-labs/harvester/internal/jsonrepair"
	"github.com/custodia-labs/harvester/internal/logger"
	"github.com/custodia-labs/harvester/internal/normalize"
)

// PageCache fetches each portal page at most once per run.
type PageCache struct {
	fetcher driven.Fetcher
	mu      sync.Mutex
	pages   map[string]string
}

// NewPageCache creates a cache over the given fetcher.
func NewPageCache(fetcher driven.Fetcher) *PageCache {
	return &PageCache{fetcher: fetcher, pages: make(map[string]string)}
}

// Get returns the markup for url, fetching it on first use.
func (p *PageCache) Get(ctx context.Context, pageURL string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if markup, ok := p.pages[pageURL]; ok {
		return markup, nil
	}
	markup, _, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	p.pages[pageURL] = markup
	return markup, nil
}

// Connector harvests one portal dataset.
type Connector struct {
	ds      domain.DatasetDescriptor
	fetcher driven.Fetcher
	cache   *PageCache
	schema  *normalize.Schema
	now     func() time.Time
}

var _ driven.Connector = (*Connector)(nil)

// New creates a connector for the dataset, sharing the page cache with
// the other datasets of the same portal.
func New(ds domain.DatasetDescriptor, fetcher driven.Fetcher, cache *PageCache, now func() time.Time) (*Connector, error) {
	schema, err := normalize.ForName(ds.Schema)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Connector{ds: ds, fetcher: fetcher, cache: cache, schema: schema, now: now}, nil
}

// Dataset returns the descriptor this connector was built for.
func (c *Connector) Dataset() domain.DatasetDescriptor {
	return c.ds
}

// Harvest reads the dataset's node out of the portal payload. Portal
// data carries no recency sort, so the known check is ignored and the
// fetch window filters records instead.
func (c *Connector) Harvest(ctx context.Context, window domain.FetchWindow, _ driven.ExistsFunc) ([]domain.NormalizedRecord, int, error) {
	markup, err := c.cache.Get(ctx, c.ds.Endpoint)
	if err != nil {
		return nil, 0, err
	}

	payload, err := extract.Bootstrap(markup)
	if err != nil {
		logger.Warn("dataset %s: %v", c.ds.Key, err)
		return nil, 1, nil
	}
	node := extract.FindDatasetNode(payload, c.ds.PortalSlug(), c.ds.Label)
	if node == nil {
		logger.Warn("dataset %s: no dataset node in portal payload", c.ds.Key)
		return nil, 1, nil
	}

	rows, pageErrors, err := c.rows(ctx, node, window)
	if err != nil {
		return nil, pageErrors, err
	}
	if rows == nil {
		logger.Warn("dataset %s: dataset node has neither table nor data url", c.ds.Key)
		return nil, pageErrors + 1, nil
	}

	var records []domain.NormalizedRecord
	for _, raw := range rows {
		rec, ok := c.schema.Record(raw, c.ds, c.ds.Endpoint, c.now())
		if !ok {
			continue
		}
		if c.beforeWindow(rec, window) {
			continue
		}
		records = append(records, rec)
	}
	return records, pageErrors, nil
}

// rows reads the dataset's raw records: the embedded table when the
// node carries one, otherwise the node's download endpoint prepared
// with the fetch window.
func (c *Connector) rows(ctx context.Context, node map[string]any, window domain.FetchWindow) ([]map[string]any, int, error) {
	if table := extract.FindTableNode(node); table != nil {
		if rows := extract.TableRows(table); rows != nil {
			return rows, 0, nil
		}
	}

	dataURL := extract.DataURL(node)
	if dataURL == "" {
		return nil, 0, nil
	}

	if err := c.fetcher.Politeness(ctx); err != nil {
		return nil, 0, err
	}
	body, _, err := c.fetcher.Fetch(ctx, PrepareURL(dataURL, window))
	if err != nil {
		return nil, 0, err
	}

	// Download payloads are frequently sloppy JSON.
	payload, err := jsonrepair.Decode(body)
	if err != nil {
		logger.Warn("dataset %s: download payload: %v", c.ds.Key, err)
		return nil, 1, nil
	}
	return extract.RecordsFromPayload(payload), 0, nil
}

func (c *Connector) beforeWindow(rec domain.NormalizedRecord, window domain.FetchWindow) bool {
	if c.ds.DateField == "" || window.Start.IsZero() {
		return false
	}
	date, ok := normalize.ParseDate(rec.Fields[c.ds.DateField])
	if !ok {
		return false
	}
	return date.Before(window.Start)
}

// fromKeys and toKeys are the query parameter names recognised as date
// window bounds on download endpoints.
var (
	fromKeys = []string{"fromDate", "from_date", "dateFrom", "startDate", "from"}
	toKeys   = []string{"toDate", "to_date", "dateTo", "endDate", "to"}
)

// PrepareURL substitutes the fetch window into a download URL: literal
// {fromDate}/{toDate} placeholders first, then any recognised date
// query parameters already present.
func PrepareURL(raw string, window domain.FetchWindow) string {
	if window.Start.IsZero() {
		return raw
	}
	start := window.Start.Format(domain.DateLayout)
	end := window.End.Format(domain.DateLayout)

	prepared := strings.ReplaceAll(raw, "{fromDate}", start)
	prepared = strings.ReplaceAll(prepared, "{toDate}", end)

	u, err := url.Parse(prepared)
	if err != nil {
		return prepared
	}
	q := u.Query()
	changed := false
	for _, key := range fromKeys {
		if q.Has(key) {
			q.Set(key, start)
			changed = true
		}
	}
	for _, key := range toKeys {
		if q.Has(key) {
			q.Set(key, end)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
		return u.String()
	}
	return prepared
}
