package handler

import (
	"context"
	"net/http"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/ml/training"
	"stocksense/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// PredictionAPI is the slice of the predictor service the HTTP layer needs.
type PredictionAPI interface {
	Predict(ctx context.Context, symbol string) (*domain.PredictionRecord, error)
	PredictAll(ctx context.Context) (*service.PredictionBatch, error)
	TopRecommendations(ctx context.Context, limit int) (*domain.Recommendations, error)
	TrainSymbol(ctx context.Context, symbol string) (*training.Result, error)
	TrainAll(ctx context.Context) (*service.TrainSummary, error)
	ModelInfos(ctx context.Context) []service.ModelInfo
	IngestBars(ctx context.Context, bars domain.Series) error
	History(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error)
}

type Advisor interface {
	Explain(ctx context.Context, symbol string) (string, error)
	Ask(ctx context.Context, question string) (string, error)
}

type Handler struct {
	tracer         trace.Tracer
	predictions    PredictionAPI
	advisor        Advisor
	recommendLimit int
	apiKey         string
}

func New(tracer trace.Tracer, predictions PredictionAPI, recommendLimit int) *Handler {
	return &Handler{
		tracer:         tracer,
		predictions:    predictions,
		recommendLimit: recommendLimit,
	}
}

// SetAdvisor enables the advisor endpoints. Without it they return 503.
func (h *Handler) SetAdvisor(a Advisor) {
	h.advisor = a
}

// SetAPIKey protects the mutating endpoints with X-API-Key auth.
func (h *Handler) SetAPIKey(key string) {
	h.apiKey = key
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/predict/:symbol", h.GetPrediction)
	r.GET("/api/predictions", h.GetAllPredictions)
	r.GET("/api/recommendations", h.GetRecommendations)
	r.GET("/api/model-info", h.GetModelInfo)
	r.GET("/api/bars/:symbol", h.GetBars)
	r.GET("/api/advisor/explain/:symbol", h.ExplainPrediction)
	r.POST("/api/advisor/ask", h.AskAdvisor)

	auth := r.Group("/api", APIKeyAuth(h.apiKey))
	auth.POST("/train", h.TrainAll)
	auth.POST("/train/:symbol", h.TrainSymbol)
	auth.POST("/bars", h.IngestBars)
}

// Health godoc
// @Summary      Health check
// @Description  Returns the health status of the service
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
