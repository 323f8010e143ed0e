package search

import "time"

type Config struct {
	// IndexPath empty keeps the index in memory.
	IndexPath       string
	DefaultAnalyzer string
	QueryTimeout    time.Duration
	BatchSize       int
}

type Doc struct {
	ID     string
	Type   string
	Fields map[string]any
}

// Request is a free-text query over the text fields, optionally narrowed by
// exact keyword filters.
type Request struct {
	Query   string
	Filters map[string]string // keyword field -> exact value
	Size    int
	From    int
}

type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type Result struct {
	Total uint64        `json:"total"`
	Hits  []Hit         `json:"hits"`
	Took  time.Duration `json:"took"`
}
