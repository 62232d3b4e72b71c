package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/vidflow/internal/index/domain"
)

// SearchIndexClickHouse implementa el índice de búsqueda sobre ClickHouse.
type SearchIndexClickHouse struct {
	db *sql.DB
}

// NewSearchIndexClickHouse es el constructor.
func NewSearchIndexClickHouse(addr string, dbName string) (*SearchIndexClickHouse, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &SearchIndexClickHouse{db: conn}, nil
}

// InitSchema crea la tabla del índice si no existe. ReplacingMergeTree
// colapsa por video_id: reindexar un vídeo sustituye la versión visible.
func (r *SearchIndexClickHouse) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS video_search_index (
			video_id        Int64,
			title           String,
			description     String,
			user_name       String,
			transcript_text String,
			summary_text    String,
			quality_score   Float64,
			indexed_at      DateTime64(3)
		) ENGINE = ReplacingMergeTree(indexed_at)
		ORDER BY video_id;
	`
	_, err := r.db.Exec(query)
	return err
}

func (r *SearchIndexClickHouse) Index(ctx context.Context, doc domain.SearchDocument) error {
	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO video_search_index (video_id, title, description, user_name, transcript_text, summary_text, quality_score, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.VideoID, doc.Title, doc.Description, doc.UserName,
		doc.TranscriptText, doc.SummaryText, doc.QualityScore, indexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to index video %d: %w", doc.VideoID, err)
	}
	return nil
}

func (r *SearchIndexClickHouse) Search(ctx context.Context, query string, limit int) ([]domain.SearchDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	// FINAL fuerza el colapso del ReplacingMergeTree para no devolver
	// versiones antiguas de un vídeo reindexado.
	rows, err := r.db.QueryContext(ctx, `
		SELECT video_id, title, description, user_name, transcript_text, summary_text, quality_score, indexed_at
		FROM video_search_index FINAL
		WHERE positionCaseInsensitive(title, ?) > 0
		   OR positionCaseInsensitive(transcript_text, ?) > 0
		   OR positionCaseInsensitive(summary_text, ?) > 0
		ORDER BY quality_score DESC, indexed_at DESC
		LIMIT ?`,
		query, query, query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.SearchDocument
	for rows.Next() {
		var doc domain.SearchDocument
		if err := rows.Scan(&doc.VideoID, &doc.Title, &doc.Description, &doc.UserName,
			&doc.TranscriptText, &doc.SummaryText, &doc.QualityScore, &doc.IndexedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Verificación en tiempo de compilación.
var _ domain.SearchIndex = (*SearchIndexClickHouse)(nil)
