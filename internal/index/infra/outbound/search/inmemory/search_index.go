package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/davicafu/vidflow/internal/index/domain"
)

// SearchIndexInMemory es el índice para despliegue local y tests: un mapa
// por video_id con búsqueda por substring.
type SearchIndexInMemory struct {
	mu   sync.RWMutex
	docs map[int64]domain.SearchDocument
}

func NewSearchIndexInMemory() *SearchIndexInMemory {
	return &SearchIndexInMemory{docs: make(map[int64]domain.SearchDocument)}
}

func (r *SearchIndexInMemory) Index(ctx context.Context, doc domain.SearchDocument) error {
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.VideoID] = doc
	return nil
}

func (r *SearchIndexInMemory) Search(ctx context.Context, query string, limit int) ([]domain.SearchDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(query)

	r.mu.RLock()
	var hits []domain.SearchDocument
	for _, doc := range r.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.TranscriptText + " " + doc.SummaryText)
		if strings.Contains(haystack, q) {
			hits = append(hits, doc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].QualityScore != hits[j].QualityScore {
			return hits[i].QualityScore > hits[j].QualityScore
		}
		return hits[i].IndexedAt.After(hits[j].IndexedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Verificación en tiempo de compilación.
var _ domain.SearchIndex = (*SearchIndexInMemory)(nil)
