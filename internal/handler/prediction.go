package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stocksense/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetPrediction godoc
// @Summary      Get the 7-day prediction for a KSE-30 equity
// @Description  Returns the ensemble price forecast, confidence, and trading signal
// @Tags         predictions
// @Produce      json
// @Param        symbol  path  string  true  "Equity symbol (e.g., OGDC, HBL)"
// @Success      200  {object}  domain.PredictionRecord
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/predict/{symbol} [get]
func (h *Handler) GetPrediction(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prediction")
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

	record, err := h.predictions.Predict(ctx, symbol)
	if err != nil {
		var missing *domain.MissingModelError
		if errors.As(err, &missing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetAllPredictions godoc
// @Summary      Get predictions for every tracked equity
// @Description  Returns the latest forecast per symbol, with per-symbol errors for the ones that failed
// @Tags         predictions
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/predictions [get]
func (h *Handler) GetAllPredictions(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-all-predictions")
	defer span.End()

	batch, err := h.predictions.PredictAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":       len(batch.Records),
		"predictions": batch.Records,
		"failed":      batch.Failed,
	})
}

// GetRecommendations godoc
// @Summary      Get top buy and sell candidates
// @Description  Returns the highest-confidence BUY and SELL signals across the index
// @Tags         predictions
// @Produce      json
// @Param        limit  query  int  false  "Number of candidates per side (default 5, max 30)"  default(5)
// @Success      200  {object}  domain.Recommendations
// @Router       /api/recommendations [get]
func (h *Handler) GetRecommendations(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-recommendations")
	defer span.End()

	limit := h.recommendLimit
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= len(domain.KSE30Symbols) {
			limit = n
		}
	}

	recs, err := h.predictions.TopRecommendations(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, recs)
}

// GetBars godoc
// @Summary      Get stored daily bars for a symbol
// @Description  Returns the OHLCV history between two dates, defaulting to the last 90 days
// @Tags         bars
// @Produce      json
// @Param        symbol  path   string  true   "Equity symbol (e.g., OGDC, HBL)"
// @Param        from    query  string  false  "Start date (YYYY-MM-DD)"
// @Param        to      query  string  false  "End date (YYYY-MM-DD)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/bars/{symbol} [get]
func (h *Handler) GetBars(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-bars")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -90)
	if q := c.Query("from"); q != "" {
		d, err := time.Parse("2006-01-02", q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date: " + q})
			return
		}
		from = d
	}
	if q := c.Query("to"); q != "" {
		d, err := time.Parse("2006-01-02", q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date: " + q})
			return
		}
		to = d
	}

	bars, err := h.predictions.History(ctx, symbol, from, to)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"count":  len(bars),
		"bars":   bars,
	})
}

// GetModelInfo godoc
// @Summary      Describe the live models
// @Description  Returns training time, horizon, and validation metrics per symbol
// @Tags         models
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/model-info [get]
func (h *Handler) GetModelInfo(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-model-info")
	defer span.End()

	infos := h.predictions.ModelInfos(ctx)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(infos),
		"models": infos,
	})
}
