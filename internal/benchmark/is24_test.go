package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianbeese/mietcheck/internal/domain"
)

func TestIS24Candidates_Order(t *testing.T) {
	area := domain.AreaDescriptor{
		PostalCode: "28779",
		City:       "Bremen",
		State:      domain.Ptr("Bremen"),
		Suburb:     domain.Ptr("Lüssum-Bockhorn"),
	}

	got := IS24Candidates("https://www.immobilienscout24.de/immobilienpreise/", area)
	require.Len(t, got, 5)

	base := "https://www.immobilienscout24.de/immobilienpreise/"
	assert.Equal(t, base+"bremen/bremen/luessum-bockhorn/mietspiegel", got[0].URL)
	assert.Equal(t, base+"bremen/bremen/luessum-bockhorn/mietspiegel", got[1].URL)
	assert.Equal(t, base+"bremen/luessum-bockhorn/mietspiegel", got[2].URL)
	assert.Equal(t, base+"bremen/bremen/mietspiegel", got[3].URL)
	assert.Equal(t, base+"bremen/mietspiegel", got[4].URL)

	for _, c := range got[:3] {
		assert.Equal(t, domain.ScopeSuburb, c.Scope)
	}
	for _, c := range got[3:] {
		assert.Equal(t, domain.ScopeCity, c.Scope)
	}
}

func TestIS24Candidates_Partial(t *testing.T) {
	base := "https://example.org/preise"

	cityOnly := IS24Candidates(base, domain.AreaDescriptor{City: "Köln"})
	require.Len(t, cityOnly, 1)
	assert.Equal(t, "https://example.org/preise/koeln/mietspiegel", cityOnly[0].URL)

	withState := IS24Candidates(base, domain.AreaDescriptor{City: "Köln", State: domain.Ptr("Nordrhein-Westfalen")})
	require.Len(t, withState, 2)
	assert.Equal(t, "https://example.org/preise/nordrhein-westfalen/koeln/mietspiegel", withState[0].URL)

	withSuburb := IS24Candidates(base, domain.AreaDescriptor{City: "Köln", Suburb: domain.Ptr("Ehrenfeld")})
	require.Len(t, withSuburb, 3)
	assert.Equal(t, "https://example.org/preise/koeln/koeln/ehrenfeld/mietspiegel", withSuburb[0].URL)

	assert.Empty(t, IS24Candidates(base, domain.AreaDescriptor{}))
}

func TestParseIS24Mietspiegel(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantNil  bool
		wantLow  *float64
		wantHigh *float64
		wantAvg  float64
	}{
		{
			name:     "low high and circle average",
			text:     "Mietspiegel Bremen Mitte Ø 10,51 €/m² Durchschnittlicher Preis 7,20 €/m² niedrigster Preis 15,80 €/m² höchster Preis",
			wantLow:  domain.Ptr(7.2),
			wantHigh: domain.Ptr(15.8),
			wantAvg:  10.51,
		},
		{
			name:    "low without high is not enough",
			text:    "8,00 € / m² Niedrigster Preis und 12,00 €/qm Hoechster Preis",
			wantNil: true,
		},
		{
			name:     "ascii o in hochster",
			text:     "8,00 €/m² niedrigster preis 12,00 €/m² hochster preis",
			wantLow:  domain.Ptr(8.0),
			wantHigh: domain.Ptr(12.0),
			wantAvg:  10,
		},
		{
			name:    "average only",
			text:    "Der Durchschnittspreis für Mietwohnungen liegt bei 9.45 EUR/m2",
			wantAvg: 9.45,
		},
		{
			name:    "durchschnittlicher preis",
			text:    "durchschnittlicher Preis: ca. 11,3 € /m²",
			wantAvg: 11.3,
		},
		{
			name:    "thousands figures are not per-area rents",
			text:    "3.215 €/m² niedrigster Preis 4.812 €/m² höchster Preis",
			wantNil: true,
		},
		{name: "no figures", text: "Seite nicht gefunden", wantNil: true},
		{name: "empty", text: "", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIS24Mietspiegel(tt.text)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantLow, got.Low)
			assert.Equal(t, tt.wantHigh, got.High)
			require.NotNil(t, got.Avg)
			assert.InDelta(t, tt.wantAvg, *got.Avg, 1e-9)
		})
	}
}
