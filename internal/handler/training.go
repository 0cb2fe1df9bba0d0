package handler

import (
	"errors"
	"net/http"
	"strings"

	"stocksense/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TrainAll godoc
// @Summary      Retrain models for every tracked equity
// @Description  Runs a full training cycle and reports per-symbol outcomes
// @Tags         training
// @Produce      json
// @Success      200  {object}  service.TrainSummary
// @Failure      500  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/train [post]
func (h *Handler) TrainAll(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.train-all")
	defer span.End()

	summary, err := h.predictions.TrainAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// TrainSymbol godoc
// @Summary      Retrain the model for one equity
// @Description  Trains, persists, and activates a fresh model bundle for the symbol
// @Tags         training
// @Produce      json
// @Param        symbol  path  string  true  "Equity symbol (e.g., OGDC, HBL)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/train/{symbol} [post]
func (h *Handler) TrainSymbol(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.train-symbol")
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

	result, err := h.predictions.TrainSymbol(ctx, symbol)
	if err != nil {
		var short *domain.InsufficientHistoryError
		if errors.As(err, &short) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"symbol":       result.Symbol,
		"samples":      result.SampleCount,
		"sequences":    result.SequenceCount,
		"dropped_rows": result.DroppedRows,
		"metrics":      result.Metrics,
	})
}

type ingestRequest struct {
	Bars []domain.Bar `json:"bars" binding:"required"`
}

// IngestBars godoc
// @Summary      Ingest daily OHLCV bars
// @Description  Upserts a batch of bars and invalidates affected prediction caches
// @Tags         data
// @Accept       json
// @Produce      json
// @Param        request  body  ingestRequest  true  "Bars to ingest"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/bars [post]
func (h *Handler) IngestBars(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ingest-bars")
	defer span.End()

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Bars) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no bars provided"})
		return
	}

	if err := h.predictions.IngestBars(ctx, domain.Series(req.Bars)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"ingested": len(req.Bars),
	})
}
