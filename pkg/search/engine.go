package search

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

var ErrClosed = errors.New("search engine closed")

type Engine interface {
	Index(ctx context.Context, doc Doc) error
	IndexBatch(ctx context.Context, docs []Doc) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, req Request) (Result, error)
	Close() error
}

type bleveEngine struct {
	cfg    Config
	index  bleve.Index
	mu     sync.RWMutex
	closed bool
}

// New opens the index at cfg.IndexPath, creating it with m when missing. An
// empty path builds a memory-only index.
func New(cfg Config, m mapping.IndexMapping) (Engine, error) {
	if m == nil {
		m = BuildIndexMapping(cfg.DefaultAnalyzer)
	}
	be := &bleveEngine{cfg: cfg}

	var (
		idx bleve.Index
		err error
	)
	switch _, statErr := os.Stat(cfg.IndexPath); {
	case cfg.IndexPath == "":
		idx, err = bleve.NewMemOnly(m)
	case statErr == nil:
		idx, err = bleve.Open(cfg.IndexPath)
	case os.IsNotExist(statErr):
		idx, err = bleve.New(cfg.IndexPath, m)
	default:
		err = statErr
	}
	if err != nil {
		return nil, err
	}
	be.index = idx
	return be, nil
}

func (e *bleveEngine) guard() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *bleveEngine) withDeadline(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	c, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	ch := make(chan error, 1)
	go func() { ch <- fn(c) }()
	select {
	case <-c.Done():
		return c.Err()
	case err := <-ch:
		return err
	}
}

func docData(doc Doc) map[string]any {
	data := make(map[string]any, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		data[k] = v
	}
	if doc.Type != "" {
		data["type"] = doc.Type
	}
	return data
}

func (e *bleveEngine) Index(ctx context.Context, doc Doc) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.withDeadline(ctx, e.cfg.QueryTimeout, func(ctx context.Context) error {
		return e.index.Index(doc.ID, docData(doc))
	})
}

func (e *bleveEngine) IndexBatch(ctx context.Context, docs []Doc) error {
	if err := e.guard(); err != nil {
		return err
	}
	bs := e.cfg.BatchSize
	if bs <= 0 {
		bs = 200
	}
	for i := 0; i < len(docs); i += bs {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := i + bs
		if end > len(docs) {
			end = len(docs)
		}
		b := e.index.NewBatch()
		for _, d := range docs[i:end] {
			if err := b.Index(d.ID, docData(d)); err != nil {
				return err
			}
		}
		if err := e.index.Batch(b); err != nil {
			return err
		}
	}
	return nil
}

func (e *bleveEngine) Delete(ctx context.Context, id string) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.withDeadline(ctx, e.cfg.QueryTimeout, func(ctx context.Context) error {
		return e.index.Delete(id)
	})
}

// Search matches req.Query against the text fields, by analysed term or by
// prefix so partially typed names still hit.
func (e *bleveEngine) Search(ctx context.Context, req Request) (Result, error) {
	if err := e.guard(); err != nil {
		return Result{}, err
	}
	size := req.Size
	if size <= 0 {
		size = 20
	}

	var must []query.Query
	if q := strings.TrimSpace(req.Query); q != "" {
		var should []query.Query
		for _, field := range TextFields {
			mq := bleve.NewMatchQuery(q)
			mq.SetField(field)
			should = append(should, mq)
			for _, word := range strings.Fields(strings.ToLower(q)) {
				pq := bleve.NewPrefixQuery(word)
				pq.SetField(field)
				should = append(should, pq)
			}
		}
		must = append(must, bleve.NewDisjunctionQuery(should...))
	}
	for field, value := range req.Filters {
		if value == "" {
			continue
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		must = append(must, tq)
	}

	var q query.Query = bleve.NewMatchAllQuery()
	if len(must) > 0 {
		q = bleve.NewConjunctionQuery(must...)
	}
	sr := bleve.NewSearchRequestOptions(q, size, req.From, false)

	var out Result
	err := e.withDeadline(ctx, e.cfg.QueryTimeout, func(ctx context.Context) error {
		res, err := e.index.SearchInContext(ctx, sr)
		if err != nil {
			return err
		}
		out.Total = res.Total
		out.Took = res.Took
		out.Hits = make([]Hit, 0, len(res.Hits))
		for _, h := range res.Hits {
			out.Hits = append(out.Hits, Hit{ID: h.ID, Score: h.Score})
		}
		return nil
	})
	return out, err
}

func (e *bleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}
