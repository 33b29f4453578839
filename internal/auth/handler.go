package auth

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exchanges the admin API key for tokens.
type Handler struct {
	signer *Signer
	apiKey string
}

// NewHandler creates a handler. An empty apiKey disables token issuance.
func NewHandler(signer *Signer, apiKey string) *Handler {
	return &Handler{signer: signer, apiKey: apiKey}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.token)
	rg.POST("/auth/refresh", h.refresh)
}

func (h *Handler) token(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	h.issue(c, "admin")
}

func (h *Handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := h.signer.Parse(req.RefreshToken, KindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	h.issue(c, claims.Subject)
}

func (h *Handler) issue(c *gin.Context, subject string) {
	tokens, err := h.signer.Issue(subject, RoleAdmin)
	if err != nil {
		log.Printf("token issue failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}
