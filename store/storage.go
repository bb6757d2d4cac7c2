package store

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"umkmrag/types"
)

// PgxPool is the subset of *pgxpool.Pool the store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore keeps the index in a pgvector table. The table is created
// on the first add, sized to the embedding dimension of that batch.
type PostgresStore struct {
	pool PgxPool
	log  *log.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, logger *log.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgresStoreFromPool(pool, logger), nil
}

func NewPostgresStoreFromPool(pool PgxPool, logger *log.Logger) *PostgresStore {
	if logger == nil {
		logger = log.Default()
	}
	return &PostgresStore{pool: pool, log: logger}
}

const (
	existsQuery = `SELECT to_regclass('public.umkm_chunks') IS NOT NULL`

	createTableQuery = `
	CREATE TABLE IF NOT EXISTS umkm_chunks (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL,
		position INT NOT NULL,
		source TEXT NOT NULL,
		page INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	);

	-- Индекс для быстрого поиска по вектору
	CREATE INDEX IF NOT EXISTS idx_umkm_chunks_embedding ON umkm_chunks USING hnsw (embedding vector_cosine_ops);
	CREATE INDEX IF NOT EXISTS idx_umkm_chunks_doc_id ON umkm_chunks(doc_id);
	`

	insertQuery = `
	INSERT INTO umkm_chunks (id, doc_id, position, source, page, content, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	searchQuery = `
	SELECT id, doc_id, position, source, page, content,
	       1-(embedding <=> $1) AS score
	FROM umkm_chunks
	ORDER BY embedding <=> $1
	LIMIT $2
	`

	countQuery = `SELECT count(*) FROM umkm_chunks`
)

func (p *PostgresStore) Open(ctx context.Context) (Index, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx, existsQuery).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check index table: %w", err)
	}
	if !exists {
		return nil, ErrIndexAbsent
	}
	return &pgIndex{store: p}, nil
}

func (p *PostgresStore) Create(ctx context.Context, chunks []types.Chunk) (Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("cannot create index without chunks")
	}
	dim := len(chunks[0].Embedding)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(createTableQuery, dim)); err != nil {
		return nil, fmt.Errorf("create index table: %w", err)
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	p.log.Info("pgvector index table created", "dimension", dim)
	return &pgIndex{store: p}, nil
}

// Close закрывает пул подключений
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.log.Info("postgres connection pool is closed")
	}
	return nil
}

func insertChunks(ctx context.Context, tx pgx.Tx, chunks []types.Chunk) error {
	for _, c := range chunks {
		_, err := tx.Exec(ctx, insertQuery,
			c.ID, c.DocID, c.Index, c.Source, c.Page, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

type pgIndex struct {
	store *PostgresStore
}

func (i *pgIndex) Append(ctx context.Context, chunks []types.Chunk) error {
	tx, err := i.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (i *pgIndex) Search(ctx context.Context, query []float32, k int) ([]types.Chunk, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("пустой вектор запроса")
	}

	rows, err := i.store.pool.Query(ctx, searchQuery, pgvector.NewVector(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocID,
			&chunk.Index,
			&chunk.Source,
			&chunk.Page,
			&chunk.Content,
			&chunk.Score); err != nil {
			return nil, err
		}
		i.store.log.Debug("chunk found", "source", chunk.Source, "index", chunk.Index, "score", chunk.Score)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (i *pgIndex) Len(ctx context.Context) (int, error) {
	var n int64
	if err := i.store.pool.QueryRow(ctx, countQuery).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}
