package signing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trainhub/platform/signing-backend/pkg/security"
)

// Handler exposes the public signing endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new signing handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers signing routes under router (mounted at /api/sign)
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/submit", h.submit)
	router.GET("/public/:token", h.lookup)
}

type geolocationRequest struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy *float64 `json:"accuracy"`
}

// SubmitRequest is the body of POST /api/sign/submit
type SubmitRequest struct {
	Token         string              `json:"token"`
	SignatureData string              `json:"signatureData"`
	Attestation   bool                `json:"attestation"`
	Fingerprint   string              `json:"fingerprint"`
	Geolocation   *geolocationRequest `json:"geolocation"`
}

// submit handles POST /api/sign/submit
func (h *Handler) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide"})
		return
	}

	in := SubmitInput{
		Token:         req.Token,
		SignatureData: req.SignatureData,
		Attestation:   req.Attestation,
		Fingerprint:   req.Fingerprint,
		IP:            clientIP(c.Request.Header),
		UserAgent:     c.Request.UserAgent(),
	}
	if g := req.Geolocation; g != nil && g.Lat != nil && g.Lng != nil {
		in.Geolocation = &security.Geolocation{Lat: *g.Lat, Lng: *g.Lng, Accuracy: g.Accuracy}
	}

	result, err := h.service.Submit(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "submit", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"type":          result.Type,
		"integrityHash": result.IntegrityHash,
		"message":       result.Message,
	})
}

// lookup handles GET /api/sign/public/:token
func (h *Handler) lookup(c *gin.Context) {
	result, err := h.service.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		body := gin.H{"error": messageFor(err)}
		if result != nil {
			body["type"] = result.Type
			body["data"] = result.Data
		}
		h.logFailure("lookup", err)
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) respondError(c *gin.Context, op string, err error) {
	h.logFailure(op, err)
	c.JSON(statusFor(err), gin.H{"error": messageFor(err)})
}

func (h *Handler) logFailure(op string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("Signing request failed", zap.String("op", op), zap.Error(err))
		return
	}
	var pe *PublicError
	if errors.As(err, &pe) {
		h.logger.Info("Signing request rejected", zap.String("op", op), zap.String("reason", pe.Kind.Error()))
	}
}

// clientIP reads the first x-forwarded-for entry, else x-real-ip.
func clientIP(header http.Header) string {
	if fwd := header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	return strings.TrimSpace(header.Get("X-Real-IP"))
}
