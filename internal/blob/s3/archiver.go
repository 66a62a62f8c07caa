package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyagents/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// Payloads above this go through the multipart uploader.
	multipartThreshold = 8 * 1024 * 1024
)

// TradeSource lists settled trades for archival.
type TradeSource interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.AgentTrade, error)
}

// ResearchSource lists research notes for archival.
type ResearchSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ResearchDecision, error)
}

// Archiver implements domain.Archiver. It copies records to
// archive/<kind>/YYYY-MM.jsonl and never deletes from the primary store.
type Archiver struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	trades   TradeSource
	research ResearchSource
	audit    domain.AuditStore
	now      func() time.Time
}

// NewArchiver wires the archiver. reader may be nil, in which case existing
// objects are overwritten.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades TradeSource,
	research ResearchSource,
	audit domain.AuditStore,
) *Archiver {
	return &Archiver{
		writer:   writer,
		reader:   reader,
		trades:   trades,
		research: research,
		audit:    audit,
		now:      time.Now,
	}
}

// ArchiveTrades uploads every trade closed before the cutoff.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	return archive(ctx, a, "trades", before, trades)
}

// ArchiveResearch uploads every research note written before the cutoff.
func (a *Archiver) ArchiveResearch(ctx context.Context, before time.Time) (int64, error) {
	notes, err := a.research.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive research query: %w", err)
	}
	return archive(ctx, a, "research", before, notes)
}

func archive[T any](ctx context.Context, a *Archiver, kind string, before time.Time, records []T) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path, err := a.pathFor(ctx, kind, before)
	if err != nil {
		return 0, err
	}
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(records))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive %s audit: %w", kind, err)
		}
	}
	return count, nil
}

// pathFor returns the monthly key, or a timestamped sibling when the
// monthly object already exists.
func (a *Archiver) pathFor(ctx context.Context, kind string, before time.Time) (string, error) {
	path := archivePath(kind, before)
	if a.reader == nil {
		return path, nil
	}
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s exists: %w", kind, err)
	}
	if !exists {
		return path, nil
	}
	return fmt.Sprintf("archive/%s/%s-%d.jsonl", kind, before.Format("2006-01"), a.now().Unix()), nil
}

// archivePath partitions archives by the cutoff's year and month:
//
//	archive/trades/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
