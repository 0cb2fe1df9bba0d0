package handler

import (
	"net/http"
	"strings"

	"stocksense/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ExplainPrediction godoc
// @Summary      Plain-language commentary on a prediction
// @Description  Explains the current forecast of a symbol, via LLM when configured
// @Tags         advisor
// @Produce      json
// @Param        symbol  path  string  true  "Equity symbol (e.g., OGDC, HBL)"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/advisor/explain/{symbol} [get]
func (h *Handler) ExplainPrediction(c *gin.Context) {
	if h.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisor unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.explain-prediction")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	if !domain.IsSupportedSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": domain.KSE30Symbols,
		})
		return
	}

	commentary, err := h.advisor.Explain(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":     symbol,
		"commentary": commentary,
	})
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

// AskAdvisor godoc
// @Summary      Ask a free-form question about the tracked equities
// @Description  Answers grounded in current model predictions; requires an LLM key
// @Tags         advisor
// @Accept       json
// @Produce      json
// @Param        request  body  askRequest  true  "Question"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/advisor/ask [post]
func (h *Handler) AskAdvisor(c *gin.Context) {
	if h.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisor unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ask-advisor")
	defer span.End()

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	answer, err := h.advisor.Ask(ctx, req.Question)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
