package portal

import (
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

const attributeSelector = `[class*="addetails"] li, [class*="attribute"]`

var (
	kaLivingRe    = regexp.MustCompile(`(?i)wohnfl\S*\s*[:\-]?\s*(\d[\d.,]*)`)
	kaRoomsRe     = regexp.MustCompile(`(?i)zimmer\s*[:\-]?\s*(\d[\d,]*)`)
	kaRoomsPostRe = regexp.MustCompile(`(?i)(\d[\d,]*)\s*zimmer`)
	kaYearRe      = regexp.MustCompile(`(?i)baujahr\s*[:\-]?\s*(\d{4})`)

	kaAnnualRe   = regexp.MustCompile(`(?i)(jahres(?:netto)?kaltmiete|jahresmiete|(?:soll|ist)[-\s]?mieteinnahmen|mieteinnahmen)`)
	kaEuroRe     = regexp.MustCompile(`(?i)([\d.\s]+(?:,\d{1,2})?)\s*(?:€|eur)`)
	kaLetForRe   = regexp.MustCompile(`(?i)(?:derzeit|aktuell)?\s*vermietet\s*(?:für|zu)?\s*([\d.\s]+(?:,\d{1,2})?)\s*(?:€|eur)[^.\n]{0,30}\b(?:kalt|netto)\b`)
	kaIncomeRe   = regexp.MustCompile(`(?i)mieteinnahmen[^.\n]{0,20}\bmonatlich\b[^.\n]{0,20}?([\d.\s]+(?:,\d{1,2})?)\s*(?:€|eur)`)
	kaMonthlyRe  = regexp.MustCompile(`(?i)([\d.\s]+(?:,\d{1,2})?)\s*(?:€|eur)\s*(?:/|pro)?\s*(?:monat|mtl\.|m|monatlich|p\.?\s*m\.?)`)
	kaPerAreaRe  = regexp.MustCompile(`(?i)(m²|m2|qm)`)
	kaHausgeldRe = regexp.MustCompile(`(?i)hausgeld`)
	kaPerMonthRe = regexp.MustCompile(`(?i)(monatlich|mtl\.|pro\s+monat)`)
)

// Kleinanzeigen reads kleinanzeigen.de real estate ads
type Kleinanzeigen struct {
	bounds RentBounds
}

// NewKleinanzeigen creates the Kleinanzeigen adapter
func NewKleinanzeigen(bounds RentBounds) *Kleinanzeigen {
	return &Kleinanzeigen{bounds: bounds}
}

func (a *Kleinanzeigen) Name() string { return "kleinanzeigen" }

func (a *Kleinanzeigen) Match(url string) bool { return strings.Contains(url, "kleinanzeigen") }

func (a *Kleinanzeigen) NeedsRender() bool { return true }

func (a *Kleinanzeigen) Extract(page *domain.Page) domain.AdapterOutput {
	doc := parseDocument(page)

	rec := domain.PropertyRecord{
		Title:       firstText(doc, "h1", "#viewad-title"),
		Price:       numberOf(firstText(doc, "#viewad-price", `[class*="price"]`)),
		Address:     firstText(doc, "#viewad-locality", `[class*="location"]`),
		Description: firstText(doc, "#viewad-description-text"),
		EnergyClass: EnergyClassFromText(page.Text),
	}

	attrs := doc.Find(attributeSelector)
	attrs.Each(func(_ int, s *goquery.Selection) {
		txt := textparse.NormalizeWhitespace(s.Text())
		if rec.LivingSpaceSqm == nil {
			rec.LivingSpaceSqm = submatchNumber(kaLivingRe, txt)
		}
		if rec.Rooms == nil {
			if rec.Rooms = submatchNumber(kaRoomsRe, txt); rec.Rooms == nil {
				rec.Rooms = submatchNumber(kaRoomsPostRe, txt)
			}
		}
		if rec.YearBuilt == nil {
			if y := submatchNumber(kaYearRe, txt); y != nil {
				v := int(*y)
				rec.YearBuilt = &v
			}
		}
	})

	var blobs []string
	if desc := doc.Find("#viewad-description-text").First(); desc.Length() > 0 {
		blobs = append(blobs, textparse.NormalizeWhitespace(desc.Text()))
	}
	attrs.Each(func(_ int, s *goquery.Selection) {
		blobs = append(blobs, textparse.NormalizeWhitespace(s.Text()))
	})
	a.rentFromBlobs(&rec, blobs)

	return domain.AdapterOutput{
		Portal:   a.Name(),
		Record:   rec,
		FullText: page.Text,
	}
}

// rentFromBlobs reads rent phrases sellers put into the description and the
// attribute list. Only monthly figures inside the bounds are kept.
func (a *Kleinanzeigen) rentFromBlobs(rec *domain.PropertyRecord, blobs []string) {
	var monthly, annual *float64

	for _, txt := range blobs {
		// "Mieteinnahmen monatlich" names a monthly figure
		if annual == nil && kaAnnualRe.MatchString(txt) && !kaPerMonthRe.MatchString(txt) {
			annual = submatchAmount(kaEuroRe, txt)
		}
		if monthly == nil {
			monthly = a.bounded(submatchAmount(kaLetForRe, txt))
		}
		if monthly == nil {
			monthly = a.bounded(submatchAmount(kaIncomeRe, txt))
		}
		if monthly == nil && !kaHausgeldRe.MatchString(txt) && !kaPerAreaRe.MatchString(txt) {
			monthly = a.bounded(submatchAmount(kaMonthlyRe, txt))
		}
	}

	if monthly == nil && annual != nil {
		m := math.Round(*annual / 12)
		monthly = &m
	}
	if monthly == nil && annual == nil {
		return
	}
	rec.RentMonthly = monthly
	rec.RentAnnual = annual
	rec.RentSource = domain.RentSourcePortal
}

func (a *Kleinanzeigen) bounded(v *float64) *float64 {
	if v == nil || !a.bounds.contains(*v) {
		return nil
	}
	return v
}

func submatchNumber(re *regexp.Regexp, s string) *float64 {
	if m := re.FindStringSubmatch(s); m != nil {
		return textparse.ParseGermanNumber(m[1])
	}
	return nil
}

func submatchAmount(re *regexp.Regexp, s string) *float64 {
	if m := re.FindStringSubmatch(s); m != nil {
		return textparse.ParseEuroAmount(m[1])
	}
	return nil
}
