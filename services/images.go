package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	// Decoder-Registrierung für die gängigen PMC-Bildformate.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"pmc-figures/config"
	"pmc-figures/models"
	"pmc-figures/pipeline"
	"pmc-figures/storage"
)

// httpClient wird für alle externen HTTP-Anfragen in diesem Service verwendet.
var httpClient = &http.Client{Timeout: 60 * time.Second}

// browserHeaders ahmt einen Browser nach. Die Artikel-Seiten weisen
// Anfragen ohne diese Header aktiv ab.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Referer":                   "https://www.ncbi.nlm.nih.gov/",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Cache-Control":             "max-age=0",
}

// ImageDownloader lokalisiert das gerenderte Bild einer Figur auf der
// öffentlichen Artikel-Seite, lädt es herunter und speichert es als JPEG.
type ImageDownloader struct {
	Config *config.Config
	Logger *zap.Logger
	Store  *storage.DatasetStore
}

// NewImageDownloader erstellt einen neuen ImageDownloader.
func NewImageDownloader(cfg *config.Config, logger *zap.Logger, store *storage.DatasetStore) *ImageDownloader {
	return &ImageDownloader{Config: cfg, Logger: logger, Store: store}
}

// Download löst die Bild-URL einer Figur auf, lädt die Bytes, dekodiert
// sie und speichert das Bild unter PMC<id>_<figure_id>.jpg. Jeder
// Fehlschlag ist klassifiziert und für den Aufrufer nicht fatal.
func (d *ImageDownloader) Download(ctx context.Context, fig models.FigureRecord) (models.FigureRecord, error) {
	log := d.Logger.With(zap.String("pmc_id", fig.PMCID), zap.String("figure_id", fig.FigureID))

	articleURL := fmt.Sprintf("%s/pmc/articles/PMC%s/", d.Config.ArticleBaseURL, fig.PMCID)
	page, err := d.get(ctx, "images.page", articleURL)
	if err != nil {
		log.Warn("Artikel-Seite konnte nicht geladen werden", zap.Error(err))
		return fig, err
	}

	imageURL, err := findImageURL(string(page), fig.ImageHref, fig.FigureID)
	if err != nil {
		log.Warn("Keine Bild-URL auf der Artikel-Seite gefunden", zap.String("image_href", fig.ImageHref))
		return fig, err
	}

	// Relative URLs gegen den Seiten-Origin auflösen.
	if strings.HasPrefix(imageURL, "/") {
		imageURL = d.Config.ArticleBaseURL + imageURL
	}
	log.Debug("Bild-URL aufgelöst", zap.String("url", imageURL))

	data, err := d.get(ctx, "images.download", imageURL)
	if err != nil {
		log.Warn("Bild-Download fehlgeschlagen", zap.String("url", imageURL), zap.Error(err))
		return fig, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn("Bild konnte nicht dekodiert werden", zap.Error(err))
		return fig, pipeline.E(pipeline.KindDecode, "images.decode", err)
	}

	filename := fmt.Sprintf("PMC%s_%s.jpg", fig.PMCID, fig.FigureID)
	path, err := d.Store.SaveJPEG(filename, img)
	if err != nil {
		log.Warn("Bild konnte nicht gespeichert werden", zap.Error(err))
		return fig, pipeline.E(pipeline.KindDecode, "images.save", err)
	}

	fig.LocalImagePath = path
	log.Info("Bild gespeichert", zap.String("path", path))
	return fig, nil
}

// findImageURL sucht im rohen HTML nach einem img-Tag, dessen src die
// Bildreferenz enthält; als Fallback zählt ein data-figure-id-Attribut.
func findImageURL(html, imageHref, figureID string) (string, error) {
	srcRegex := regexp.MustCompile(`<img[^>]*?src="([^"]*?` + regexp.QuoteMeta(imageHref) + `[^"]*?)"`)
	if m := srcRegex.FindStringSubmatch(html); len(m) > 1 {
		return m[1], nil
	}

	figRegex := regexp.MustCompile(`<img[^>]*?data-figure-id="` + regexp.QuoteMeta(figureID) + `"[^>]*?src="([^"]*?)"`)
	if m := figRegex.FindStringSubmatch(html); len(m) > 1 {
		return m[1], nil
	}

	return "", pipeline.Errorf(pipeline.KindNotFound, "images.resolve",
		"kein img-Tag für %q gefunden", imageHref)
}

// get führt einen GET-Request mit Browser-Headern aus.
func (d *ImageDownloader) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, pipeline.E(pipeline.KindMalformed, op, err)
	}
	for key, value := range browserHeaders {
		req.Header.Set(key, value)
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

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.E(pipeline.KindTransient, op, err)
	}
	return data, nil
}
