// Package report renders analysis and market rent results for the CLI and
// for Telegram.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/julianbeese/mietcheck/internal/domain"
)

// Format selects plain text or Telegram HTML output
type Format int

const (
	FormatText Format = iota
	FormatHTML
)

// Renderer creates messages from templates
type Renderer struct {
	analysis   *template.Template
	marketRent *template.Template
	change     *template.Template
}

// ChangeData describes a benchmark that moved between two watch runs
type ChangeData struct {
	Previous domain.MarketRentResult
	Current  domain.MarketRentResult
}

// NewRenderer parses the templates for the given format
func NewRenderer(format Format) (*Renderer, error) {
	printer := message.NewPrinter(language.German)

	escape := func(s string) string { return s }
	bold := func(s string) string { return s }
	if format == FormatHTML {
		escape = html.EscapeString
		bold = func(s string) string { return "<b>" + s + "</b>" }
	}

	funcs := template.FuncMap{
		"esc":  escape,
		"bold": bold,
		"str": func(s *string) string {
			if s == nil {
				return ""
			}
			return escape(*s)
		},
		"euro": func(v *float64) string {
			if v == nil {
				return "–"
			}
			return printer.Sprintf("%.0f €", *v)
		},
		"sqm": func(v *float64) string {
			if v == nil {
				return "–"
			}
			return printer.Sprintf("%.2f €/m²", *v)
		},
		"num": func(v *float64) string {
			if v == nil {
				return "–"
			}
			return printer.Sprintf("%g", *v)
		},
		"year": func(v *int) string {
			if v == nil {
				return "–"
			}
			return fmt.Sprint(*v)
		},
		"absent": func(rec domain.PropertyRecord, field string) string {
			if reason, ok := rec.Absent[field]; ok {
				return " (" + reason + ")"
			}
			return ""
		},
	}

	parse := func(name, text string) (*template.Template, error) {
		t, err := template.New(name).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		return t, nil
	}

	var (
		r   Renderer
		err error
	)
	if r.analysis, err = parse("analysis", analysisTemplate); err != nil {
		return nil, err
	}
	if r.marketRent, err = parse("market_rent", marketRentTemplate); err != nil {
		return nil, err
	}
	if r.change, err = parse("change", changeTemplate); err != nil {
		return nil, err
	}
	return &r, nil
}

// Analysis renders the merged record of one listing
func (r *Renderer) Analysis(res *domain.AnalysisResult) (string, error) {
	data := struct {
		*domain.AnalysisResult
		PricePerSqm *float64
	}{res, res.Record.PricePerSqm()}
	return execute(r.analysis, data)
}

// MarketRent renders a postal code lookup
func (r *Renderer) MarketRent(res domain.MarketRentResult) (string, error) {
	return execute(r.marketRent, res)
}

// Change renders a benchmark update found by the watch scheduler
func (r *Renderer) Change(prev, cur domain.MarketRentResult) (string, error) {
	return execute(r.change, ChangeData{Previous: prev, Current: cur})
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

const analysisTemplate = `🏠 {{bold "Analyse"}}{{with .Record.Title}} {{str .}}{{end}}
🔗 {{esc .URL}}
Portal: {{esc .Portal}}{{with .Strategy}} ({{.}}){{end}}
{{with .Record.Address}}📍 {{str .}}
{{end}}
💰 Kaufpreis: {{euro .Record.Price}}{{absent .Record "price"}}
📐 Wohnfläche: {{num .Record.LivingSpaceSqm}} m²{{absent .Record "livingSpaceSqm"}}
🚪 Zimmer: {{num .Record.Rooms}}{{absent .Record "rooms"}}
🏗 Baujahr: {{year .Record.YearBuilt}}{{absent .Record "yearBuilt"}}
⚡ Energieklasse: {{with .Record.EnergyClass}}{{str .}}{{else}}–{{end}}{{absent .Record "energyClass"}}
{{with .PricePerSqm}}📊 Preis pro m²: {{sqm .}}
{{end}}
{{bold "Miete"}}
Kaltmiete monatlich: {{euro .Record.RentMonthly}}{{absent .Record "rentMonthly"}}
Kaltmiete jährlich: {{euro .Record.RentAnnual}}{{absent .Record "rentAnnual"}}
{{with .Record.RentSource}}Quelle: {{.}}
{{end}}{{with .Record.RentContextSnippet}}„{{str .}}“
{{end}}`

const marketRentTemplate = `{{if .Found}}📊 {{bold "Mietspiegel"}} {{esc .PostalCode}} {{esc .Area.City}}{{with .Area.Suburb}} / {{str .}}{{end}}
{{with .Area.State}}{{str .}}
{{end}}{{with .Benchmark}}Spanne: {{sqm .RangeLow}} bis {{sqm .RangeHigh}}
Durchschnitt: {{sqm .Average}}
Ebene: {{.Scope}}
Quelle: {{esc .SourceURL}}{{end}}{{else}}❌ {{esc .PostalCode}}: {{esc .Reason}}{{end}}`

const changeTemplate = `🔔 {{bold "Mietspiegel geändert"}} {{esc .Current.PostalCode}}{{with .Current.Area}} {{esc .City}}{{end}}
Vorher: {{with .Previous.Benchmark}}{{sqm .Average}}{{else}}–{{end}}
Jetzt: {{with .Current.Benchmark}}{{sqm .Average}}
Quelle: {{esc .SourceURL}}{{end}}`
