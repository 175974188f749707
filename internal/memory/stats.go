package memory

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"human-api/internal/contextutil"
	"human-api/internal/embedding"
	"human-api/internal/service"
	"human-api/internal/storage"
)

// Per-row size estimates behind Stats.StorageSizeBytes.
const (
	estimatedMemoryBytes = 1000
	estimatedChunkBytes  = 500
)

// embedBatchSize is the number of chunks sent per embeddings request.
const embedBatchSize = 32

// Stats returns counts for the active vault. StorageSizeBytes is an estimate
// derived from the counts, not a measurement.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return Stats{}, err
	}

	var memories, chunks, embeddings int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.memories.Count(gctx, vaultID)
		memories = n
		return err
	})
	g.Go(func() error {
		n, err := s.chunks.Count(gctx, vaultID)
		chunks = n
		return err
	})
	g.Go(func() error {
		n, err := s.chunks.CountEmbeddings(gctx, vaultID)
		embeddings = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, storageErr("collect stats", err)
	}

	return Stats{
		TotalMemories:    memories,
		TotalChunks:      chunks,
		TotalEmbeddings:  embeddings,
		StorageSizeBytes: int64(memories)*estimatedMemoryBytes + int64(chunks)*estimatedChunkBytes,
		LastUpdated:      s.now(),
	}, nil
}

// Tags lists the tags carried by memories of the active vault, ordered by name.
func (s *Store) Tags(ctx context.Context) ([]Tag, error) {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return nil, err
	}

	records, err := s.tags.List(ctx, vaultID)
	if err != nil {
		return nil, storageErr("list tags", err)
	}
	tags := make([]Tag, 0, len(records))
	for _, r := range records {
		tags = append(tags, Tag{Name: r.Name, Color: r.Color, MemoryCount: r.Count, CreatedAt: r.CreatedAt})
	}
	return tags, nil
}

// ParsePeriod validates an insights period name.
func ParsePeriod(p string) (Period, error) {
	switch Period(p) {
	case Daily, Weekly, Monthly:
		return Period(p), nil
	default:
		return "", &service.ValidationError{Field: "period", Message: "must be daily, weekly or monthly"}
	}
}

func (p Period) days() int {
	switch p {
	case Weekly:
		return 7
	case Monthly:
		return 30
	default:
		return 1
	}
}

// Insights reports activity in the active vault over the period ending now:
// totals, new memories, the most used tags and per-day creation counts for
// the last N calendar days.
func (s *Store) Insights(ctx context.Context, period Period) (Insights, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return Insights{}, err
	}

	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return Insights{}, err
	}

	now := s.now()
	days := period.days()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)

	var total, fresh int
	var topTags []TagUsage
	var trends []TrendPoint

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.memories.Count(gctx, vaultID)
		total = n
		return err
	})
	g.Go(func() error {
		n, err := s.memories.CountCreatedSince(gctx, vaultID, since)
		fresh = n
		return err
	})
	g.Go(func() error {
		counts, err := s.tags.TopTags(gctx, vaultID, topTagsLimit)
		if err != nil {
			return err
		}
		topTags = make([]TagUsage, 0, len(counts))
		for _, c := range counts {
			topTags = append(topTags, TagUsage{Name: c.Name, Count: c.Count})
		}
		return nil
	})
	g.Go(func() error {
		records, err := s.memories.ListAll(gctx, vaultID)
		if err != nil {
			return err
		}

		buckets := make(map[string]int, days)
		for _, r := range records {
			buckets[r.CreatedAt.UTC().Format(time.DateOnly)]++
		}

		trends = make([]TrendPoint, 0, days)
		for i := days - 1; i >= 0; i-- {
			day := now.AddDate(0, 0, -i).Format(time.DateOnly)
			trends = append(trends, TrendPoint{Date: day, Count: buckets[day]})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Insights{}, storageErr("collect insights", err)
	}

	return Insights{
		Period:        period,
		TotalMemories: total,
		NewMemories:   fresh,
		TopTags:       topTags,
		MemoryTrends:  trends,
		GeneratedAt:   now,
	}, nil
}

// SyncEmbeddings embeds, in batches, every chunk of the active vault that has
// no embedding yet and reports how many were written and how many remain.
// Without an embedder it only reports the backlog. An embedder failure stops
// the sync; batches already stored are kept.
func (s *Store) SyncEmbeddings(ctx context.Context) (SyncResult, error) {
	vaultID, err := s.vaults.ActiveVaultID()
	if err != nil {
		return SyncResult{}, err
	}
	logger := contextutil.LoggerFromContext(ctx)

	var result SyncResult
	if s.embedder != nil {
		for {
			n, err := s.embedBatch(ctx, vaultID)
			result.Embedded += n
			if err != nil {
				logger.Error("embedding sync failed", "embedded", result.Embedded, "error", err)
				return result, err
			}
			if n == 0 {
				break
			}
		}
	}

	pending, err := s.chunks.CountWithoutEmbeddings(ctx, vaultID)
	if err != nil {
		return result, storageErr("count pending embeddings", err)
	}
	result.PendingChunks = pending

	logger.Info("embedding sync finished", "embedded", result.Embedded, "pending_chunks", pending)
	return result, nil
}

func (s *Store) embedBatch(ctx context.Context, vaultID string) (int, error) {
	chunks, err := s.embeddings.ListPending(ctx, vaultID, embedBatchSize)
	if err != nil {
		return 0, storageErr("list pending chunks", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embed chunks: %v", service.ErrExternalService, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", service.ErrExternalService, len(vectors), len(chunks))
	}

	now := s.now()
	records := make([]storage.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		records[i] = storage.EmbeddingRecord{
			ID:        uuid.New().String(),
			ChunkID:   c.ID,
			Vector:    embedding.EncodeVector(vectors[i]),
			ModelName: s.embedder.Model(),
			CreatedAt: now,
		}
	}

	n, err := s.embeddings.InsertBatch(ctx, records)
	if err != nil {
		return 0, storageErr("store embeddings", err)
	}
	return n, nil
}

// CollectSystemInfo describes the running process. DiskUsage is the size of
// the database file plus its WAL, or 0 when they cannot be read.
func CollectSystemInfo(version, dbPath string) SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var disk int64
	for _, path := range []string{dbPath, dbPath + "-wal"} {
		if info, err := os.Stat(path); err == nil {
			disk += info.Size()
		}
	}

	return SystemInfo{
		Version:     version,
		Platform:    runtime.GOOS,
		Arch:        runtime.GOARCH,
		GoVersion:   runtime.Version(),
		MemoryUsage: mem.Alloc,
		DiskUsage:   disk,
	}
}
