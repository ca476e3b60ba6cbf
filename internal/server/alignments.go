package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dumb-meh/Sui-Amor/internal/logging"
	"github.com/dumb-meh/Sui-Amor/models"
)

// maxUploadBytes bounds a single alignment sheet upload.
const maxUploadBytes = 16 << 20

// DocumentStore is the alignment persistence surface the handlers use.
type DocumentStore interface {
	Ingest(ctx context.Context, filename string, content []byte) (models.AlignmentDocument, error)
	ListDocuments(ctx context.Context) ([]models.AlignmentDocument, error)
	DeleteDocument(ctx context.Context, id string) error
}

type AlignmentsHandler struct {
	Store DocumentStore
}

func (h *AlignmentsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.POST("", h.upload)
	g.GET("", h.list)
	g.DELETE("/:id", h.remove)
}

func (h *AlignmentsHandler) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' required")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()
	content, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(content) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	doc, err := h.Store.Ingest(c.Request().Context(), fh.Filename, content)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	logging.L(c.Request().Context()).Info("alignment document ingested",
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("chunks", doc.Chunks))
	return c.JSON(http.StatusCreated, toDocumentResponse(doc))
}

func (h *AlignmentsHandler) list(c echo.Context) error {
	docs, err := h.Store.ListDocuments(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AlignmentsHandler) remove(c echo.Context) error {
	id := c.Param("id")
	if err := h.Store.DeleteDocument(c.Request().Context(), id); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func toDocumentResponse(d models.AlignmentDocument) DocumentResponse {
	return DocumentResponse{ID: d.ID, Filename: d.Filename, Checksum: d.Checksum, Chunks: d.Chunks}
}
