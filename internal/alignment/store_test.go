package alignment

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/dumb-meh/Sui-Amor/models"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 0.5}
	}
	return vecs, nil
}

const findByChecksumQuery = `
SELECT d.id, d.filename, d.checksum, d.created_at,
       (SELECT COUNT(*) FROM alignment_chunks c WHERE c.document_id = d.id)
FROM alignment_documents d WHERE d.checksum=$1
`

func TestIngestStoresChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	emb := &stubEmbedder{}
	st := &Store{DB: db, embedder: emb}
	content := []byte("First paragraph about calm.\n\nSecond paragraph about courage.")

	mock.ExpectQuery(regexp.QuoteMeta(findByChecksumQuery)).
		WithArgs(Checksum(content)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "checksum", "created_at", "count"}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO alignment_documents (id, filename, checksum, created_at)
VALUES ($1,$2,$3,NOW())
`)).
		WithArgs(sqlmock.AnyArg(), "notes.txt", Checksum(content)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(regexp.QuoteMeta(`
INSERT INTO alignment_chunks (id, document_id, seq, content, embedding, created_at)
VALUES ($1,$2,$3,$4,$5::vector,NOW())
`)).
		ExpectExec().
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0, "First paragraph about calm.\n\nSecond paragraph about courage.", "[0,0.5]").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc, err := st.Ingest(context.Background(), "notes.txt", content)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.Chunks != 1 {
		t.Fatalf("expected 1 chunk, got %d", doc.Chunks)
	}
	if emb.calls != 1 {
		t.Fatalf("expected 1 embed call, got %d", emb.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIngestIdempotentPerChecksum(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	emb := &stubEmbedder{}
	st := &Store{DB: db, embedder: emb}
	content := []byte("Same bytes, same document.")

	mock.ExpectQuery(regexp.QuoteMeta(findByChecksumQuery)).
		WithArgs(Checksum(content)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "checksum", "created_at", "count"}).
			AddRow("doc-1", "notes.txt", Checksum(content), time.Now(), 3))

	doc, err := st.Ingest(context.Background(), "notes.txt", content)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.ID != "doc-1" || doc.Chunks != 3 {
		t.Fatalf("expected existing document back, got %+v", doc)
	}
	if emb.calls != 0 {
		t.Fatal("re-ingesting identical content must not embed again")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	st := &Store{embedder: &stubEmbedder{}}
	_, err := st.Ingest(context.Background(), "empty.txt", nil)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRetrieveOrdersByDistanceThenID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	query := regexp.QuoteMeta(`
SELECT id, document_id, seq, content, created_at, embedding <=> $1::vector AS distance
FROM alignment_chunks
ORDER BY embedding <=> $1::vector, id
LIMIT $2
`)
	now := time.Now()
	mock.ExpectQuery(query).
		WithArgs("[0.1,0.2]", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "seq", "content", "created_at", "distance"}).
			AddRow("doc-1-0000", "doc-1", 0, "calm", now, 0.1).
			AddRow("doc-1-0001", "doc-1", 1, "courage", now, 0.1))

	chunks, err := st.Retrieve(context.Background(), []float32{0.1, 0.2}, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 2 || chunks[0].ID != "doc-1-0000" || chunks[1].ID != "doc-1-0001" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRetrieveErrorIsTransient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("SELECT id, document_id").WillReturnError(errors.New("connection refused"))

	_, err = st.Retrieve(context.Background(), []float32{0.1}, 5)
	if !models.IsTransient(err) {
		t.Fatalf("vector store failures must classify transient, got %v", err)
	}
}

func TestVersionStableForSameSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"checksum"}).AddRow("aaa").AddRow("bbb")
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT checksum FROM alignment_documents ORDER BY checksum`)).WillReturnRows(rows())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT checksum FROM alignment_documents ORDER BY checksum`)).WillReturnRows(rows())

	v1, err := st.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	v2, _ := st.Version(context.Background())
	if v1 != v2 {
		t.Fatalf("version must be deterministic: %s vs %s", v1, v2)
	}
}

func TestVersionEmptySet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT checksum FROM alignment_documents ORDER BY checksum`)).
		WillReturnRows(sqlmock.NewRows([]string{"checksum"}))

	v, err := st.Version(context.Background())
	if err != nil || v != "empty" {
		t.Fatalf("expected empty version, got %q err=%v", v, err)
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM alignment_documents WHERE id=$1`)).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.DeleteDocument(context.Background(), "missing"); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
