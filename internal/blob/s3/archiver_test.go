package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyagents/internal/domain"
	"github.com/alanyoungcy/polyagents/internal/store/memory"
)

type fakeBlobs struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobs) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = b
	f.types[path] = contentType
	return nil
}

func (f *fakeBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "multipart")
}

func (f *fakeBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

func lines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestArchiveTrades(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewTradeStore()
	audit := memory.NewAuditStore()
	blobs := newFakeBlobs()

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, trades.Insert(ctx, domain.AgentTrade{ID: id, AgentID: "a", Status: domain.TradeStatusOpen}))
	}
	require.NoError(t, trades.UpdateSettlement(ctx, "t1", 5, cutoff.Add(-48*time.Hour)))
	require.NoError(t, trades.UpdateSettlement(ctx, "t2", -3, cutoff.Add(-time.Hour)))

	a := NewArchiver(blobs, blobs, trades, memory.NewResearchStore(), audit)
	n, err := a.ArchiveTrades(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	body, ok := blobs.objects["archive/trades/2026-03.jsonl"]
	require.True(t, ok)
	assert.Equal(t, jsonlContentType, blobs.types["archive/trades/2026-03.jsonl"])
	assert.Len(t, lines(t, body), 2)

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.trades", entries[0].Event)
	assert.Equal(t, int64(2), entries[0].Detail["count"])
}

func TestArchiveDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	research := memory.NewResearchStore()
	blobs := newFakeBlobs()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, research.InsertBatch(ctx, []domain.ResearchDecision{
		{ID: "r1", AgentID: "a", Timestamp: cutoff.Add(-time.Hour)},
	}))

	a := NewArchiver(blobs, blobs, memory.NewTradeStore(), research, nil)
	a.now = func() time.Time { return cutoff }

	_, err := a.ArchiveResearch(ctx, cutoff)
	require.NoError(t, err)
	_, err = a.ArchiveResearch(ctx, cutoff)
	require.NoError(t, err)

	assert.Contains(t, blobs.objects, "archive/research/2026-03.jsonl")
	assert.Contains(t, blobs.objects, "archive/research/2026-03-1772323200.jsonl")
}

func TestArchiveEmpty(t *testing.T) {
	blobs := newFakeBlobs()
	a := NewArchiver(blobs, nil, memory.NewTradeStore(), memory.NewResearchStore(), nil)
	n, err := a.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blobs.objects)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", endpointURL("e2.example.com", true))
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "https://r2.example.com", endpointURL("https://r2.example.com", false))
}
