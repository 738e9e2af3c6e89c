package rent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/llm"
)

type fakeCompleter struct {
	enabled bool
	answer  string
	err     error

	system string
	user   string
	opts   llm.Options
	calls  int
}

func (f *fakeCompleter) Enabled() bool { return f.enabled }

func (f *fakeCompleter) Complete(_ context.Context, system, user string, opts llm.Options) (string, error) {
	f.calls++
	f.system, f.user, f.opts = system, user, opts
	return f.answer, f.err
}

func newModelExtractor(c llm.Completer) *ModelExtractor {
	return NewModelExtractor(c, config.DefaultConfig().OpenAI, nil, nil)
}

func sampleOutput() domain.AdapterOutput {
	return domain.AdapterOutput{
		Portal: "kleinanzeigen",
		Record: domain.PropertyRecord{
			Title:          domain.Ptr("Vermietete 2-Zimmer-Wohnung"),
			Address:        domain.Ptr("28195 Bremen"),
			Rooms:          domain.Ptr(2.0),
			LivingSpaceSqm: domain.Ptr(54.5),
			Description:    domain.Ptr("Die Wohnung ist langfristig vermietet."),
		},
		FullText: "Vermietete 2-Zimmer-Wohnung Kaltmiete 560 €",
	}
}

func TestModelExtractor_Disabled(t *testing.T) {
	c := &fakeCompleter{enabled: false, answer: `{"rent_monthly_cold": 600}`}
	e := newModelExtractor(c)

	assert.False(t, e.Enabled())
	assert.Nil(t, e.Extract(context.Background(), sampleOutput(), "https://example.org"))
	assert.Zero(t, c.calls)

	assert.Nil(t, newModelExtractor(nil).Extract(context.Background(), sampleOutput(), "u"))
}

func TestModelExtractor_Prompt(t *testing.T) {
	c := &fakeCompleter{enabled: true, answer: `{"rent_monthly_cold": 560, "confidence": 0.9}`}
	e := newModelExtractor(c)

	res := e.Extract(context.Background(), sampleOutput(), "https://www.kleinanzeigen.de/s-anzeige/1")
	require.NotNil(t, res)

	assert.Equal(t, modelSystemPrompt, c.system)
	assert.Contains(t, c.user, "URL: https://www.kleinanzeigen.de/s-anzeige/1")
	assert.Contains(t, c.user, "Titel: Vermietete 2-Zimmer-Wohnung")
	assert.Contains(t, c.user, "Wohnfläche: 54.5 m²")
	assert.Contains(t, c.user, "Zimmer: 2")
	assert.Contains(t, c.user, "langfristig vermietet")
	assert.Contains(t, c.user, "Kaltmiete 560 €")
	assert.Equal(t, 300, c.opts.MaxTokens)
	assert.Equal(t, float32(0), c.opts.Temperature)
}

func TestModelExtractor_PromptTruncatesPageText(t *testing.T) {
	c := &fakeCompleter{enabled: true, answer: `{}`}
	cfg := config.DefaultConfig().OpenAI
	cfg.MaxPageChars = 10
	e := NewModelExtractor(c, cfg, nil, nil)

	out := sampleOutput()
	out.FullText = "0123456789ABCDEF"
	e.Extract(context.Background(), out, "u")

	assert.Contains(t, c.user, "0123456789")
	assert.NotContains(t, c.user, "ABCDEF")
}

func TestModelExtractor_Answers(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		wantNil     bool
		wantMonthly float64
		wantAnnual  float64
		wantConf    *float64
		wantSnippet string
	}{
		{
			name:        "plain json",
			answer:      `{"rent_monthly_cold": 650, "rent_annual_cold": null, "confidence": 0.8, "source": "monthly", "context_snippet": "Kaltmiete 650 €"}`,
			wantMonthly: 650,
			wantAnnual:  7800,
			wantConf:    domain.Ptr(0.8),
			wantSnippet: "Kaltmiete 650 €",
		},
		{
			name:        "code fence",
			answer:      "```json\n{\"rent_monthly_cold\": 700, \"rent_annual_cold\": 8400}\n```",
			wantMonthly: 700,
			wantAnnual:  8400,
		},
		{
			name:        "prose around object",
			answer:      `Hier das Ergebnis: {"rent_monthly_cold": "1.150,00", "context_snippet": "NKM 1.150 €"} Ich hoffe das hilft.`,
			wantMonthly: 1150,
			wantAnnual:  13800,
			wantSnippet: "NKM 1.150 €",
		},
		{
			name:        "annual only derives monthly",
			answer:      `{"rent_monthly_cold": null, "rent_annual_cold": 9600}`,
			wantMonthly: 800,
			wantAnnual:  9600,
		},
		{
			name:        "both figures plausible",
			answer:      `{"rent_monthly_cold": 9600, "rent_annual_cold": 115200}`,
			wantMonthly: 9600,
			wantAnnual:  115200,
		},
		{
			name:        "per sqm mistaken for monthly",
			answer:      `{"rent_monthly_cold": 12.5, "rent_annual_cold": 9000}`,
			wantMonthly: 750,
			wantAnnual:  9000,
		},
		{
			name:        "low annual dropped",
			answer:      `{"rent_monthly_cold": 500, "rent_annual_cold": 600}`,
			wantMonthly: 500,
			wantAnnual:  6000,
		},
		{
			name:        "confidence string ignored",
			answer:      `{"rent_monthly_cold": 500, "confidence": "hoch"}`,
			wantMonthly: 500,
			wantAnnual:  6000,
		},
		{name: "nothing plausible", answer: `{"rent_monthly_cold": 50, "rent_annual_cold": 600}`, wantNil: true},
		{name: "all null", answer: `{"rent_monthly_cold": null, "rent_annual_cold": null}`, wantNil: true},
		{name: "garbage", answer: `keine Angaben gefunden`, wantNil: true},
		{name: "unbalanced", answer: `{"rent_monthly_cold": 600`, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newModelExtractor(&fakeCompleter{enabled: true, answer: tt.answer})
			res := e.Extract(context.Background(), sampleOutput(), "u")
			if tt.wantNil {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, domain.RentSourceLLM, res.Source)
			assert.Equal(t, tt.wantMonthly, *res.Monthly)
			assert.Equal(t, tt.wantAnnual, *res.Annual)
			assert.Equal(t, tt.wantConf, res.Confidence)
			assert.Equal(t, tt.wantSnippet, res.ContextSnippet)
		})
	}
}

func TestModelExtractor_CompletionError(t *testing.T) {
	c := &fakeCompleter{enabled: true, err: errors.New("timeout")}
	assert.Nil(t, newModelExtractor(c).Extract(context.Background(), sampleOutput(), "u"))
	assert.Equal(t, 1, c.calls)
}
