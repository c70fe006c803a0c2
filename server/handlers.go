package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xhad/grounder/internal/models"
	"github.com/xhad/grounder/pkg/breaker"
	"github.com/xhad/grounder/pkg/ingest"
)

// DocumentService is what the handlers need from the ingestion side.
type DocumentService interface {
	CreateDocument(ctx context.Context, title, content, sourceURL, docType string) (*models.Document, <-chan ingest.Result, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, title, content, sourceURL, docType string) (*models.Document, []models.ChunkRef, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	SearchDocumentsByTitle(ctx context.Context, title string) ([]models.Document, error)
}

// AnswerService is what the handlers need from the answering side.
type AnswerService interface {
	AnswerWithParams(ctx context.Context, question string, topK int, threshold float64) (string, error)
}

var validate = validator.New()

func validateStruct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	errs := err.(validator.ValidationErrors)
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return fields
}

type DocumentRequest struct {
	Title        string `json:"title" validate:"required"`
	Content      string `json:"content" validate:"required"`
	SourceURL    string `json:"source_url" validate:"omitempty,url"`
	DocumentType string `json:"document_type"`
}

type DocumentResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url,omitempty"`
	DocumentType string    `json:"document_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toDocumentResponse(doc *models.Document) DocumentResponse {
	return DocumentResponse{
		ID:           doc.ID,
		Title:        doc.Title,
		SourceURL:    doc.SourceURL,
		DocumentType: doc.DocumentType,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

type AskRequest struct {
	Question  string  `json:"question" validate:"required"`
	TopK      int     `json:"top_k" validate:"omitempty,gt=0"`
	Threshold float64 `json:"threshold" validate:"omitempty,gt=0"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type DocumentHandler struct {
	documents DocumentService
}

func NewDocumentHandler(documents DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// HandleCreate persists the document and kicks chunk ingestion in the
// background; the response does not wait for embeddings. An existing source
// URL returns the stored document with 200 instead of 201.
func (h *DocumentHandler) HandleCreate(c *fiber.Ctx) error {
	var req DocumentRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if fields := validateStruct(req); fields != nil {
		return NewValidationError(fields)
	}

	doc, handle, err := h.documents.CreateDocument(c.Context(), req.Title, req.Content, req.SourceURL, req.DocumentType)
	if err != nil {
		return err
	}
	if handle == nil {
		return c.Status(fiber.StatusOK).JSON(toDocumentResponse(doc))
	}

	go func() {
		if res := <-handle; res.Err != nil {
			log.Printf("[SERVER] background ingestion failed for document %s: %v", doc.ID, res.Err)
		}
	}()
	return c.Status(fiber.StatusCreated).JSON(toDocumentResponse(doc))
}

func (h *DocumentHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	doc, err := h.documents.GetDocument(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(toDocumentResponse(doc))
}

func (h *DocumentHandler) HandleSearch(c *fiber.Ctx) error {
	title := c.Query("title")
	if title == "" {
		return NewError(fiber.StatusBadRequest, "title query parameter is required")
	}
	docs, err := h.documents.SearchDocumentsByTitle(c.Context(), title)
	if err != nil {
		return err
	}
	resp := make([]DocumentResponse, len(docs))
	for i := range docs {
		resp[i] = toDocumentResponse(&docs[i])
	}
	return c.JSON(resp)
}

func (h *DocumentHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	var req DocumentRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if fields := validateStruct(req); fields != nil {
		return NewValidationError(fields)
	}

	doc, _, err := h.documents.UpdateDocument(c.Context(), id, req.Title, req.Content, req.SourceURL, req.DocumentType)
	if err != nil {
		return err
	}
	return c.JSON(toDocumentResponse(doc))
}

func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	if err := h.documents.DeleteDocument(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type AskHandler struct {
	answers AnswerService
}

func NewAskHandler(answers AnswerService) *AskHandler {
	return &AskHandler{answers: answers}
}

func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if fields := validateStruct(req); fields != nil {
		return NewValidationError(fields)
	}

	answer, err := h.answers.AnswerWithParams(c.Context(), req.Question, req.TopK, req.Threshold)
	if err != nil {
		return err
	}
	return c.JSON(AskResponse{Answer: answer})
}

type CheckHandler struct {
	breaker *breaker.Breaker
}

func NewCheckHandler(cb *breaker.Breaker) *CheckHandler {
	return &CheckHandler{breaker: cb}
}

func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"breaker": h.breaker.Status(),
	})
}

func (h *CheckHandler) HandleBreakerReset(c *fiber.Ctx) error {
	h.breaker.Reset()
	return c.JSON(fiber.Map{"status": "reset"})
}
