package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zoneDoc(id, name, desc, zoneType string) Doc {
	return Doc{ID: id, Type: DocTypeZone, Fields: map[string]any{
		FieldName:        name,
		FieldDescription: desc,
		FieldZoneType:    zoneType,
		FieldRiskScore:   10.0,
	}}
}

func ids(res Result) []string {
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.ID)
	}
	return out
}

func newEngine(t *testing.T, cfg Config) Engine {
	t.Helper()
	e, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSearchZones(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, Config{})

	require.NoError(t, e.IndexBatch(ctx, []Doc{
		zoneDoc("z1", "Chandni Chowk", "Crowded old market, watch for pickpockets", "moderate"),
		zoneDoc("z2", "Paharganj Area", "Reports of scams and petty theft after dark", "high-risk"),
		zoneDoc("z3", "Red Fort", "Mughal fort complex", "tourist-spot"),
	}))

	res, err := e.Search(ctx, Request{Query: "market"})
	require.NoError(t, err)
	assert.Equal(t, []string{"z1"}, ids(res))

	res, err = e.Search(ctx, Request{Query: "pahar"})
	require.NoError(t, err)
	assert.Equal(t, []string{"z2"}, ids(res))

	res, err = e.Search(ctx, Request{Filters: map[string]string{FieldZoneType: "tourist-spot"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"z3"}, ids(res))

	res, err = e.Search(ctx, Request{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
}

func TestDeleteAndReindex(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, Config{})

	require.NoError(t, e.Index(ctx, zoneDoc("z1", "India Gate", "War memorial", "tourist-spot")))
	require.NoError(t, e.Index(ctx, zoneDoc("z1", "India Gate Lawns", "Open lawns", "safe")))

	res, err := e.Search(ctx, Request{Query: "memorial"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	res, err = e.Search(ctx, Request{Query: "lawns", Filters: map[string]string{FieldZoneType: "safe"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"z1"}, ids(res))

	require.NoError(t, e.Delete(ctx, "z1"))
	res, err = e.Search(ctx, Request{Query: "lawns"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestOnDiskIndexReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "zones.bleve")

	e, err := New(Config{IndexPath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Index(ctx, zoneDoc("z1", "Qutub Minar", "Heritage site", "tourist-spot")))
	require.NoError(t, e.Close())

	_, err = e.Search(ctx, Request{Query: "qutub"})
	assert.ErrorIs(t, err, ErrClosed)

	reopened := newEngine(t, Config{IndexPath: path})
	res, err := reopened.Search(ctx, Request{Query: "qutub"})
	require.NoError(t, err)
	assert.Equal(t, []string{"z1"}, ids(res))
}
