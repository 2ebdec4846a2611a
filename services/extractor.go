package services

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"pmc-figures/models"
)

const xlinkNamespace = "http://www.w3.org/1999/xlink"

// Extractor extrahiert Figuren samt Captions aus dem Volltext-XML eines
// PMC-Artikels.
type Extractor struct {
	Logger *zap.Logger

	// keywordRegex filtert Captions; nil bedeutet kein Filter.
	keywordRegex *regexp.Regexp
}

// NewExtractor erstellt einen Extractor. Eine leere Keyword-Liste
// deaktiviert den Caption-Filter.
func NewExtractor(logger *zap.Logger, keywords []string) *Extractor {
	var re *regexp.Regexp
	if len(keywords) > 0 {
		escaped := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			escaped = append(escaped, regexp.QuoteMeta(kw))
		}
		re = regexp.MustCompile(`(?i)` + strings.Join(escaped, "|"))
	}
	return &Extractor{Logger: logger, keywordRegex: re}
}

// Extract liefert alle verwertbaren Figuren eines Artikels. Figuren ohne
// Caption oder ohne Grafikreferenz werden stillschweigend übersprungen;
// nicht parsebares XML führt zu einer leeren Liste für den ganzen Artikel.
func (e *Extractor) Extract(xmlText, pmcID string) []models.FigureRecord {
	figures, err := parseFigures(strings.NewReader(xmlText))
	if err != nil {
		e.Logger.Warn("Artikel-XML konnte nicht geparst werden, überspringe Artikel",
			zap.String("pmc_id", pmcID), zap.Error(err))
		return nil
	}

	var records []models.FigureRecord
	for _, fig := range figures {
		figureID := fig.ID
		if figureID == "" {
			// Positions-Fallback, falls das id-Attribut fehlt.
			figureID = fmt.Sprintf("fig_%d", len(records))
		}

		if !fig.HasCaption {
			continue
		}
		caption := strings.TrimSpace(fig.Caption)

		if e.keywordRegex != nil && !e.keywordRegex.MatchString(caption) {
			continue
		}

		if fig.Href == "" {
			continue
		}

		records = append(records, models.FigureRecord{
			PMCID:     pmcID,
			FigureID:  figureID,
			Caption:   caption,
			ImageHref: fig.Href,
		})
	}

	e.Logger.Debug("Figurenextraktion abgeschlossen",
		zap.String("pmc_id", pmcID), zap.Int("figures", len(records)))
	return records
}

// xmlFigure ist das Zwischenergebnis des XML-Durchlaufs für ein fig-Element.
type xmlFigure struct {
	ID         string
	HasCaption bool
	Caption    string
	Href       string
}

// parseFigures durchläuft den Token-Strom und sammelt alle fig-Elemente
// ein, auch solche innerhalb von fig-group.
func parseFigures(r io.Reader) ([]xmlFigure, error) {
	dec := xml.NewDecoder(r)
	var figures []xmlFigure

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "fig" {
			continue
		}

		fig, err := parseFig(dec, se)
		if err != nil {
			return nil, err
		}
		figures = append(figures, fig)
	}
	return figures, nil
}

// parseFig konsumiert alle Token bis zum schließenden fig-Tag. Der
// Caption-Text ist die Konkatenation aller Textknoten in Dokumentreihenfolge.
func parseFig(dec *xml.Decoder, start xml.StartElement) (xmlFigure, error) {
	var fig xmlFigure
	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			fig.ID = attr.Value
		}
	}

	depth := 1
	captionDepth := 0
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return fig, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "caption":
				fig.HasCaption = true
				captionDepth++
			case "graphic":
				if fig.Href == "" {
					for _, attr := range t.Attr {
						if attr.Name.Local == "href" && attr.Name.Space == xlinkNamespace {
							fig.Href = attr.Value
						}
					}
				}
			}
		case xml.EndElement:
			depth--
			if captionDepth > 0 && t.Name.Local == "caption" {
				captionDepth--
			}
		case xml.CharData:
			if captionDepth > 0 {
				fig.Caption += string(t)
			}
		}
	}
	return fig, nil
}
