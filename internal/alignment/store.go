// Package alignment stores ingested reference documents as embedded chunks in
// Postgres (pgvector) and retrieves the nearest chunks for a query embedding.
package alignment

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/dumb-meh/Sui-Amor/models"
)

// EmbeddingDimensions is the expected length of vectors stored in the
// pgvector column.
const EmbeddingDimensions = 3072

// Embedder computes embedding vectors for texts. Satisfied by the LLM
// provider.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the alignment store. One shared instance is reused across
// requests; the *sql.DB handles pooling.
type Store struct {
	DB       *sql.DB
	embedder Embedder
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string, embedder Embedder) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db, embedder: embedder}, nil
}

// Checksum digests document bytes; ingestion is idempotent per checksum.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Ingest chunks and embeds a document and stores the chunks. Re-ingesting
// byte-identical content returns the existing document unchanged.
func (s *Store) Ingest(ctx context.Context, filename string, content []byte) (models.AlignmentDocument, error) {
	if len(content) == 0 {
		return models.AlignmentDocument{}, fmt.Errorf("%w: document is empty", models.ErrValidation)
	}
	checksum := Checksum(content)

	if doc, found, err := s.findByChecksum(ctx, checksum); err != nil {
		return models.AlignmentDocument{}, err
	} else if found {
		return doc, nil
	}

	chunks := ExtractChunks(filename, content)
	if len(chunks) == 0 {
		return models.AlignmentDocument{}, fmt.Errorf("%w: document yielded no chunks", models.ErrValidation)
	}

	vecs, err := s.embedder.CreateEmbedding(ctx, chunks)
	if err != nil {
		return models.AlignmentDocument{}, err
	}
	if len(vecs) != len(chunks) {
		return models.AlignmentDocument{}, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	docID := uuid.NewString()
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.AlignmentDocument{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO alignment_documents (id, filename, checksum, created_at)
VALUES ($1,$2,$3,NOW())
`, docID, filename, checksum); err != nil {
		return models.AlignmentDocument{}, fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO alignment_chunks (id, document_id, seq, content, embedding, created_at)
VALUES ($1,$2,$3,$4,$5::vector,NOW())
`)
	if err != nil {
		return models.AlignmentDocument{}, err
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		var lit string
		lit, err = encodeVectorLiteral(vecs[i])
		if err != nil {
			return models.AlignmentDocument{}, fmt.Errorf("chunk %d: %w", i, err)
		}
		chunkID := fmt.Sprintf("%s-%04d", docID, i)
		if _, err = stmt.ExecContext(ctx, chunkID, docID, i, chunk, lit); err != nil {
			return models.AlignmentDocument{}, fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	return models.AlignmentDocument{ID: docID, Filename: filename, Checksum: checksum, Chunks: len(chunks)}, nil
}

func (s *Store) findByChecksum(ctx context.Context, checksum string) (models.AlignmentDocument, bool, error) {
	var doc models.AlignmentDocument
	err := s.DB.QueryRowContext(ctx, `
SELECT d.id, d.filename, d.checksum, d.created_at,
       (SELECT COUNT(*) FROM alignment_chunks c WHERE c.document_id = d.id)
FROM alignment_documents d WHERE d.checksum=$1
`, checksum).Scan(&doc.ID, &doc.Filename, &doc.Checksum, &doc.CreatedAt, &doc.Chunks)
	if err == sql.ErrNoRows {
		return models.AlignmentDocument{}, false, nil
	}
	if err != nil {
		return models.AlignmentDocument{}, false, err
	}
	return doc, true, nil
}

// Retrieve returns the k nearest chunks by embedding distance. Ordering is
// deterministic: ties on distance break by chunk id, so identical queries
// against the same alignment set always see identical context.
func (s *Store) Retrieve(ctx context.Context, vector []float32, k int) ([]models.AlignmentChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if k <= 0 {
		k = 12
	}
	lit, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, document_id, seq, content, created_at, embedding <=> $1::vector AS distance
FROM alignment_chunks
ORDER BY embedding <=> $1::vector, id
LIMIT $2
`, lit, k)
	if err != nil {
		return nil, &models.ProviderError{Op: "retrieve", Transient: true, Err: err}
	}
	defer rows.Close()

	var out []models.AlignmentChunk
	for rows.Next() {
		var c models.AlignmentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Content, &c.CreatedAt, &c.Distance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDocuments returns all ingested documents with their chunk counts.
func (s *Store) ListDocuments(ctx context.Context) ([]models.AlignmentDocument, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT d.id, d.filename, d.checksum, d.created_at,
       (SELECT COUNT(*) FROM alignment_chunks c WHERE c.document_id = d.id)
FROM alignment_documents d
ORDER BY d.created_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AlignmentDocument
	for rows.Next() {
		var d models.AlignmentDocument
		if err := rows.Scan(&d.ID, &d.Filename, &d.Checksum, &d.CreatedAt, &d.Chunks); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and all its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM alignment_documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// Version returns a deterministic digest of the current alignment set,
// derived from the sorted document checksums. It changes exactly when the
// set of ingested documents changes, which keys fingerprint-based caching.
func (s *Store) Version(ctx context.Context) (string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT checksum FROM alignment_documents ORDER BY checksum`)
	if err != nil {
		return "", &models.ProviderError{Op: "version", Transient: true, Err: err}
	}
	defer rows.Close()

	h := sha256.New()
	any := false
	for rows.Next() {
		var checksum string
		if err := rows.Scan(&checksum); err != nil {
			return "", err
		}
		h.Write([]byte(checksum))
		h.Write([]byte{'\n'})
		any = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if !any {
		return "empty", nil
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.DB.Close() }

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
