package evidence

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler serves evidence exports for a signed request
type Handler struct {
	repo   Repository
	logger *zap.Logger
	nowFn  func() time.Time
}

// NewHandler creates a new evidence handler
func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
		nowFn:  time.Now,
	}
}

// RegisterRoutes registers evidence export routes behind the given guards
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, guards ...gin.HandlerFunc) {
	ev := router.Group("/evidence", guards...)
	{
		ev.GET("/:requestId/certificate.pdf", h.certificate)
		ev.GET("/:requestId/export.xlsx", h.workbook)
	}
}

// certificate handles GET /api/sign/evidence/:requestId/certificate.pdf
func (h *Handler) certificate(c *gin.Context) {
	orgID, requestID, records, ok := h.load(c)
	if !ok {
		return
	}

	body, err := WriteCertificate(orgID, requestID, records, h.nowFn())
	if err != nil {
		h.logger.Error("Failed to render evidence certificate", zap.Error(err), zap.String("request_id", requestID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="preuve_%s.pdf"`, requestID))
	c.Data(http.StatusOK, contentTypePDF, body)
}

// workbook handles GET /api/sign/evidence/:requestId/export.xlsx
func (h *Handler) workbook(c *gin.Context) {
	_, requestID, records, ok := h.load(c)
	if !ok {
		return
	}

	body, err := WriteWorkbook(records)
	if err != nil {
		h.logger.Error("Failed to export evidence workbook", zap.Error(err), zap.String("request_id", requestID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="preuves_%s.xlsx"`, requestID))
	c.Data(http.StatusOK, contentTypeXLSX, body)
}

func (h *Handler) load(c *gin.Context) (uuid.UUID, uuid.UUID, []Record, bool) {
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return uuid.Nil, uuid.Nil, nil, false
	}
	orgID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return uuid.Nil, uuid.Nil, nil, false
	}

	records, err := h.repo.ListByRequest(c.Request.Context(), orgID, requestID)
	if err != nil {
		h.logger.Error("Failed to list evidence", zap.Error(err), zap.String("request_id", requestID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return uuid.Nil, uuid.Nil, nil, false
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Aucune preuve pour cette demande"})
		return uuid.Nil, uuid.Nil, nil, false
	}
	return orgID, requestID, records, true
}
