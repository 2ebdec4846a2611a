package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pmc-figures/config"
	"pmc-figures/pipeline"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PMC kapselt.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des PMC-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// Search führt eine ESearch-Abfrage durch und gibt eine Liste von PMC-IDs
// zurück. Der Open-Access-Filter wird immer an die Query angehängt. Bei
// limitResults=false bestimmt zuerst eine Count-Abfrage die Trefferzahl.
func (f *Fetcher) Search(ctx context.Context, term string, limitResults bool, maxResults int) ([]string, error) {
	log := f.Logger.With(zap.String("term", term))
	log.Info("Starte PMC ESearch für IDs.")

	query := term + " AND open access[filter]"

	if !limitResults {
		total, err := f.countArticles(ctx, query)
		if err != nil {
			log.Error("Count-Abfrage fehlgeschlagen", zap.Error(err))
			return nil, err
		}
		log.Info("Kein Limit gesetzt, verarbeite alle Treffer", zap.Int("total", total))
		maxResults = total
	} else {
		log.Info("Limitiere Ergebnisse", zap.Int("max_results", maxResults))
	}

	searchURL := f.buildEsearchURL(query, maxResults)
	log.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	body, err := f.get(ctx, "pubmed.search", searchURL)
	if err != nil {
		return nil, err
	}

	var esearchResp ESearchResponse
	if err := json.Unmarshal(body, &esearchResp); err != nil {
		log.Error("Fehler beim Parsen der ESearch-JSON-Antwort", zap.Error(err))
		return nil, pipeline.E(pipeline.KindMalformed, "pubmed.search", err)
	}

	ids := esearchResp.ESearchResult.IdList
	log.Info("PMC ESearch abgeschlossen", zap.Int("total_ids", len(ids)))
	return ids, nil
}

// FetchArticle holt das Volltext-XML eines Artikels via EFetch.
func (f *Fetcher) FetchArticle(ctx context.Context, id string) (string, error) {
	fetchURL := fmt.Sprintf("%s/efetch.fcgi?db=pmc&id=%s&retmode=xml%s",
		f.Config.EutilsBaseURL, url.QueryEscape(id), f.etiquette())
	f.Logger.Debug("Rufe EFetch-URL auf", zap.String("pmc_id", id), zap.String("url", fetchURL))

	body, err := f.get(ctx, "pubmed.fetch", fetchURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// countArticles ermittelt die Gesamttrefferzahl über rettype=count.
func (f *Fetcher) countArticles(ctx context.Context, query string) (int, error) {
	countURL := fmt.Sprintf("%s/esearch.fcgi?db=pmc&term=%s&rettype=count%s",
		f.Config.EutilsBaseURL, url.QueryEscape(query), f.etiquette())

	body, err := f.get(ctx, "pubmed.count", countURL)
	if err != nil {
		return 0, err
	}

	total, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, pipeline.E(pipeline.KindMalformed, "pubmed.count", err)
	}
	return total, nil
}

// get führt einen GET-Request aus und klassifiziert Fehlschläge.
func (f *Fetcher) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, pipeline.E(pipeline.KindMalformed, op, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, pipeline.E(pipeline.KindTransient, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, pipeline.Errorf(pipeline.KindFromStatus(resp.StatusCode), op,
			"unerwarteter status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.E(pipeline.KindTransient, op, err)
	}
	return body, nil
}

// buildEsearchURL baut die URL für eine ESearch-Anfrage.
func (f *Fetcher) buildEsearchURL(term string, retmax int) string {
	return fmt.Sprintf("%s/esearch.fcgi?db=pmc&term=%s&retmax=%d&retmode=json%s",
		f.Config.EutilsBaseURL, url.QueryEscape(term), retmax, f.etiquette())
}

// etiquette hängt die Identifikationsparameter laut NCBI-Richtlinien an.
// Ohne API-Key gilt lediglich ein strikteres Rate-Limit.
func (f *Fetcher) etiquette() string {
	params := fmt.Sprintf("&tool=%s&email=%s",
		url.QueryEscape(f.Config.Tool), url.QueryEscape(f.Config.Email))
	if f.Config.APIKey != "" {
		params += "&api_key=" + url.QueryEscape(f.Config.APIKey)
	}
	return params
}
