package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/omartood/tafsiir-agent/internal/query"
	"github.com/omartood/tafsiir-agent/internal/telemetry"
)

// Asker answers one user question.
type Asker interface {
	Ask(ctx context.Context, message string) (*query.Answer, error)
}

// ChatHandler serves the chat endpoint
type ChatHandler struct {
	Service Asker
	Metrics *telemetry.Metrics
	Logger  *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

// chat answers one question. Provider and store failures become a generic
// 500 so raw provider payloads never leak to end users; the quota case gets
// its own status and a localized message.
func (h *ChatHandler) chat(c echo.Context) error {
	start := time.Now()

	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		h.count(telemetry.StatusBadRequest)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message is required"})
	}

	ans, err := h.Service.Ask(c.Request().Context(), req.Message)
	if h.Metrics != nil {
		h.Metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		h.Logger.Printf("chat error: %v", err)
		if errors.Is(err, query.ErrRateLimited) {
			h.count(telemetry.StatusRateLimited)
			return c.JSON(http.StatusTooManyRequests, map[string]string{"text": query.QuotaMessage})
		}
		h.count(telemetry.StatusError)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	if ans.NotReady {
		h.count(telemetry.StatusNotReady)
	} else {
		h.count(telemetry.StatusOK)
	}
	return c.JSON(http.StatusOK, ans)
}

func (h *ChatHandler) count(status string) {
	if h.Metrics != nil {
		h.Metrics.QueriesTotal.WithLabelValues(status).Inc()
	}
}
