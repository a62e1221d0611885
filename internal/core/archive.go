package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	"golang.org/x/sync/errgroup"

	"growcore/internal/blob"
)

// Archive defaults.
const (
	DefaultArchiveChunkSize   = 1000
	DefaultArchiveConcurrency = 4
	archiveContentType        = "application/x-ndjson"
)

// ArchiveOptions configures ArchiveEvents. Prefix defaults to
// "events/<unix-seconds>"; AfterSeq skips events already archived.
type ArchiveOptions struct {
	Prefix      string
	AfterSeq    uint64
	ChunkSize   int
	Concurrency int
}

// ArchiveChunk names one JSON-lines object in the archive.
type ArchiveChunk struct {
	Key      string `json:"key"`
	Events   int    `json:"events"`
	FirstSeq uint64 `json:"first_seq"`
	LastSeq  uint64 `json:"last_seq"`
	ETag     string `json:"etag,omitempty"`
}

// ArchiveManifest is written last, so a prefix without manifest.json is an
// incomplete archive.
type ArchiveManifest struct {
	Prefix     string         `json:"prefix"`
	Version    uint64         `json:"store_version"`
	EventCount int            `json:"event_count"`
	FirstSeq   uint64         `json:"first_seq"`
	LastSeq    uint64         `json:"last_seq"`
	Chunks     []ArchiveChunk `json:"chunks"`
	CreatedAt  string         `json:"created_at"`
}

// ArchiveEvents copies the event log, oldest first, into dst as JSON-lines
// chunks followed by a manifest. Chunks upload concurrently; any failure
// aborts the archive before the manifest is written.
func (s *Service) ArchiveEvents(ctx context.Context, dst blob.Store, opts ArchiveOptions) (ArchiveManifest, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultArchiveChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultArchiveConcurrency
	}
	now := s.clock.Now().UTC()
	if opts.Prefix == "" {
		opts.Prefix = "events/" + strconv.FormatInt(now.Unix(), 10)
	}

	var (
		events  []PlantEvent
		version uint64
	)
	if err := s.view(ctx, "archive_snapshot", func(view TransactionView) error {
		for _, e := range view.Events() {
			if e.Seq > opts.AfterSeq {
				events = append(events, e)
			}
		}
		version = s.store.Version()
		return nil
	}); err != nil {
		return ArchiveManifest{}, err
	}

	manifest := ArchiveManifest{
		Prefix:     opts.Prefix,
		Version:    version,
		EventCount: len(events),
		Chunks:     []ArchiveChunk{},
		CreatedAt:  now.Format("2006-01-02T15:04:05Z"),
	}
	if len(events) > 0 {
		manifest.FirstSeq = events[0].Seq
		manifest.LastSeq = events[len(events)-1].Seq
	}
	for start := 0; start < len(events); start += opts.ChunkSize {
		end := min(start+opts.ChunkSize, len(events))
		manifest.Chunks = append(manifest.Chunks, ArchiveChunk{
			Key:      path.Join(opts.Prefix, fmt.Sprintf("events-%06d.jsonl", len(manifest.Chunks)+1)),
			Events:   end - start,
			FirstSeq: events[start].Seq,
			LastSeq:  events[end-1].Seq,
		})
	}

	err := s.run(ctx, "archive_events", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i := range manifest.Chunks {
			chunk := &manifest.Chunks[i]
			part := events[i*opts.ChunkSize : i*opts.ChunkSize+chunk.Events]
			g.Go(func() error {
				var buf bytes.Buffer
				enc := json.NewEncoder(&buf)
				for _, e := range part {
					if err := enc.Encode(e); err != nil {
						return fmt.Errorf("encode event %d: %w", e.Seq, err)
					}
				}
				info, err := dst.Put(gctx, chunk.Key, &buf, blob.PutOptions{
					ContentType: archiveContentType,
					Metadata:    map[string]string{"events": strconv.Itoa(chunk.Events)},
				})
				if err != nil {
					return fmt.Errorf("upload %s: %w", chunk.Key, err)
				}
				chunk.ETag = info.ETag
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		raw, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return err
		}
		if _, err := dst.Put(ctx, path.Join(opts.Prefix, "manifest.json"), bytes.NewReader(raw), blob.PutOptions{ContentType: "application/json"}); err != nil {
			return fmt.Errorf("upload manifest: %w", err)
		}
		s.logger.Info("events archived", "prefix", opts.Prefix, "events", manifest.EventCount, "chunks", len(manifest.Chunks), "driver", string(dst.Driver()))
		return nil
	})
	if err != nil {
		return ArchiveManifest{}, err
	}
	return manifest, nil
}
