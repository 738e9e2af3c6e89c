package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/julianbeese/mietcheck/internal/domain"
)

const version = "1.0.0"

// maxBatch bounds the postal codes accepted by one batch request
const maxBatch = 20

// Service is what the handlers need from the analyzer
type Service interface {
	AnalyzeURL(ctx context.Context, url string) (*domain.AnalysisResult, error)
	MarketRent(ctx context.Context, postalCode string) domain.MarketRentResult
	MarketRentBatch(ctx context.Context, postalCodes []string) []domain.MarketRentResult
	ModelEnabled() bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc Service
	now func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

// Health reports liveness and whether the model is configured
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"openai":    h.svc.ModelEnabled(),
		"version":   version,
	})
}

type analyzeRequest struct {
	URL string `json:"url"`
}

// analyzeResponse flattens the record next to request metadata
type analyzeResponse struct {
	ID          string               `json:"id"`
	Source      string               `json:"source"`
	Portal      string               `json:"portal"`
	Strategy    domain.FetchStrategy `json:"strategy,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
	PricePerSqm *float64             `json:"pricePerSqm,omitempty"`
	domain.PropertyRecord
}

// AnalyzeURL handles POST /api/analyze-url
func (h *Handler) AnalyzeURL(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL erforderlich"})
		return
	}

	res, err := h.svc.AnalyzeURL(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Analyse fehlgeschlagen",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, analyzeResponse{
		ID:             res.ID,
		Source:         res.URL,
		Portal:         res.Portal,
		Strategy:       res.Strategy,
		Timestamp:      res.AnalyzedAt,
		PricePerSqm:    res.Record.PricePerSqm(),
		PropertyRecord: res.Record,
	})
}

type marketRentRequest struct {
	PostalCode string `json:"plz"`
}

type marketRentResponse struct {
	OK        bool                  `json:"ok"`
	Error     string                `json:"error,omitempty"`
	PLZ       string                `json:"plz,omitempty"`
	City      string                `json:"city,omitempty"`
	Suburb    *string               `json:"suburb"`
	State     *string               `json:"state"`
	Source    string                `json:"source,omitempty"`
	Provider  string                `json:"provider,omitempty"`
	RangeLow  *float64              `json:"rangeLow,omitempty"`
	RangeHigh *float64              `json:"rangeHigh,omitempty"`
	AvgPerSqm *float64              `json:"avgPerSqm,omitempty"`
	Scope     domain.BenchmarkScope `json:"scope,omitempty"`
}

func toMarketRentResponse(m domain.MarketRentResult) marketRentResponse {
	resp := marketRentResponse{OK: m.Found, Error: m.Reason, PLZ: m.PostalCode}
	if m.Area != nil {
		resp.City = m.Area.City
		resp.Suburb = m.Area.Suburb
		resp.State = m.Area.State
	}
	if b := m.Benchmark; b != nil {
		resp.Source = b.SourceURL
		resp.Provider = b.Provider
		resp.RangeLow = b.RangeLow
		resp.RangeHigh = b.RangeHigh
		resp.AvgPerSqm = b.Average
		resp.Scope = b.Scope
	}
	return resp
}

// MarketRent handles POST /api/mietspiegel-by-plz. Lookups that find nothing
// still answer 200 with ok=false.
func (h *Handler) MarketRent(c *gin.Context) {
	var req marketRentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PostalCode) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "PLZ fehlt"})
		return
	}

	res := h.svc.MarketRent(c.Request.Context(), req.PostalCode)
	c.JSON(http.StatusOK, toMarketRentResponse(res))
}

type batchRequest struct {
	PostalCodes []string `json:"plzs"`
}

// MarketRentBatch handles POST /api/mietspiegel-batch
func (h *Handler) MarketRentBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.PostalCodes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "PLZ fehlt"})
		return
	}
	if len(req.PostalCodes) > maxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "zu viele PLZ"})
		return
	}

	results := h.svc.MarketRentBatch(c.Request.Context(), req.PostalCodes)
	out := make([]marketRentResponse, 0, len(results))
	for _, r := range results {
		out = append(out, toMarketRentResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "results": out})
}
