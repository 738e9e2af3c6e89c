package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianbeese/mietcheck/internal/domain"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeService struct {
	analysis *domain.AnalysisResult
	err      error
	rents    map[string]domain.MarketRentResult
	model    bool
	gotURL   string
	panicky  bool
}

func (f *fakeService) AnalyzeURL(_ context.Context, url string) (*domain.AnalysisResult, error) {
	if f.panicky {
		panic("boom")
	}
	f.gotURL = url
	return f.analysis, f.err
}

func (f *fakeService) MarketRent(_ context.Context, plz string) domain.MarketRentResult {
	if r, ok := f.rents[plz]; ok {
		return r
	}
	return domain.MarketRentResult{PostalCode: plz, Reason: "PLZ nicht gefunden"}
}

func (f *fakeService) MarketRentBatch(ctx context.Context, plzs []string) []domain.MarketRentResult {
	out := make([]domain.MarketRentResult, len(plzs))
	for i, p := range plzs {
		out[i] = f.MarketRent(ctx, p)
	}
	return out
}

func (f *fakeService) ModelEnabled() bool { return f.model }

func newService() *fakeService {
	return &fakeService{
		model: true,
		analysis: &domain.AnalysisResult{
			ID:         "a1",
			URL:        "https://example.org/expose/1",
			Portal:     "generic",
			Strategy:   domain.StrategyHTTP,
			AnalyzedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Record: domain.PropertyRecord{
				Price:          domain.Ptr(250000.0),
				LivingSpaceSqm: domain.Ptr(62.5),
				RentMonthly:    domain.Ptr(650.0),
				RentAnnual:     domain.Ptr(7800.0),
				RentSource:     domain.RentSourceTextKalt,
			},
		},
		rents: map[string]domain.MarketRentResult{
			"28203": {
				PostalCode: "28203",
				Found:      true,
				Area:       &domain.AreaDescriptor{PostalCode: "28203", City: "Bremen", State: domain.Ptr("Bremen"), Suburb: domain.Ptr("Ostertor")},
				Benchmark: &domain.RentBenchmark{
					SourceURL: "https://www.immobilienscout24.de/immobilienpreise/bremen/bremen/ostertor/mietspiegel",
					Provider:  "immobilienscout24",
					RangeLow:  domain.Ptr(8.5),
					RangeHigh: domain.Ptr(14.2),
					Average:   domain.Ptr(11.35),
					Scope:     domain.ScopeSuburb,
				},
			},
		},
	}
}

func do(t *testing.T, svc Service, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	router := NewRouter(NewHandler(svc), nil)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestHealth(t *testing.T) {
	w, resp := do(t, newService(), http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", resp["status"])
	assert.Equal(t, true, resp["openai"])
	assert.Equal(t, version, resp["version"])
	assert.NotEmpty(t, resp["timestamp"])
}

func TestAnalyzeURL(t *testing.T) {
	svc := newService()
	w, resp := do(t, svc, http.MethodPost, "/api/analyze-url", `{"url":"https://example.org/expose/1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.org/expose/1", svc.gotURL)
	assert.Equal(t, "a1", resp["id"])
	assert.Equal(t, "https://example.org/expose/1", resp["source"])
	assert.Equal(t, 650.0, resp["rentMonthly"])
	assert.Equal(t, 7800.0, resp["rentAnnual"])
	assert.Equal(t, "text-kalt", resp["rentSource"])
	assert.Equal(t, 4000.0, resp["pricePerSqm"])
}

func TestAnalyzeURL_BadRequest(t *testing.T) {
	for _, body := range []string{`{}`, `{"url":"  "}`, `not json`} {
		w, resp := do(t, newService(), http.MethodPost, "/api/analyze-url", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "URL erforderlich", resp["error"])
	}
}

func TestAnalyzeURL_Failure(t *testing.T) {
	svc := newService()
	svc.analysis = nil
	svc.err = fmt.Errorf("%w: Seite konnte nicht geladen werden", domain.ErrExtractionFailed)

	w, resp := do(t, svc, http.MethodPost, "/api/analyze-url", `{"url":"https://example.org/x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Analyse fehlgeschlagen", resp["error"])
	assert.Contains(t, resp["message"], "Seite konnte nicht geladen werden")
}

func TestAnalyzeURL_PanicRecovered(t *testing.T) {
	svc := newService()
	svc.panicky = true

	w, resp := do(t, svc, http.MethodPost, "/api/analyze-url", `{"url":"https://example.org/x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, resp["ok"])
}

func TestMarketRent(t *testing.T) {
	w, resp := do(t, newService(), http.MethodPost, "/api/mietspiegel-by-plz", `{"plz":"28203"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "Bremen", resp["city"])
	assert.Equal(t, "Ostertor", resp["suburb"])
	assert.Equal(t, "Bremen", resp["state"])
	assert.Equal(t, 8.5, resp["rangeLow"])
	assert.Equal(t, 14.2, resp["rangeHigh"])
	assert.Equal(t, 11.35, resp["avgPerSqm"])
	assert.Equal(t, "suburb", resp["scope"])
	assert.Contains(t, resp["source"], "immobilienscout24.de")
}

func TestMarketRent_NotFound(t *testing.T) {
	w, resp := do(t, newService(), http.MethodPost, "/api/mietspiegel-by-plz", `{"plz":"00000"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "PLZ nicht gefunden", resp["error"])
	assert.Nil(t, resp["suburb"])
}

func TestMarketRent_MissingPostalCode(t *testing.T) {
	w, resp := do(t, newService(), http.MethodPost, "/api/mietspiegel-by-plz", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PLZ fehlt", resp["error"])
}

func TestMarketRentBatch(t *testing.T) {
	w, resp := do(t, newService(), http.MethodPost, "/api/mietspiegel-batch", `{"plzs":["28203","00000"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	results, ok := resp["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0].(map[string]any)["ok"])
	assert.Equal(t, false, results[1].(map[string]any)["ok"])

	w, _ = do(t, newService(), http.MethodPost, "/api/mietspiegel-batch", `{"plzs":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
