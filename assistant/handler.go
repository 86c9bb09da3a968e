package assistant

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Request is the body of a chat call.
type Request struct {
	Prompt  string    `json:"prompt"`
	History []Message `json:"history"`
}

// Response is the body of a successful chat call.
type Response struct {
	GeneratedText string `json:"generatedText"`
}

// Proxy serves the chat endpoint.
type Proxy struct {
	Generator Generator
	Logger    *zap.Logger
}

// Handle answers a chat call. Any origin may call it.
func (p *Proxy) Handle(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	text, err := p.Generator.Generate(c.Request.Context(), req.Prompt, req.History)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("assistant upstream failed", zap.Error(err))
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{GeneratedText: text})
}

// Register mounts the proxy on path for POST and OPTIONS.
func (p *Proxy) Register(r gin.IRoutes, path string) {
	r.POST(path, p.Handle)
	r.OPTIONS(path, p.Handle)
}
