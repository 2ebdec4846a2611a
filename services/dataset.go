package services

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"pmc-figures/config"
	"pmc-figures/models"
	"pmc-figures/pipeline"
	"pmc-figures/providers"
	"pmc-figures/storage"
)

var (
	articlesProcessed prometheus.Counter
	pairsExtracted    prometheus.Counter
	downloadFailures  prometheus.Counter
)

func init() {
	articlesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "articles_processed_total",
		Help: "Total number of PMC articles processed.",
	})
	pairsExtracted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "figure_pairs_extracted_total",
		Help: "Total number of image/caption pairs written to the dataset.",
	})
	downloadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "figure_download_failures_total",
		Help: "Total number of figures skipped because the image download failed.",
	})
	prometheus.MustRegister(articlesProcessed, pairsExtracted, downloadFailures)
}

// DatasetService kümmert sich um die Orchestrierung eines kompletten
// Dataset-Laufs: Suche, Artikelverarbeitung und periodisches Schreiben
// der Metadaten.
type DatasetService struct {
	Config     *config.Config
	Logger     *zap.Logger
	Provider   providers.Provider
	Extractor  *Extractor
	Downloader *ImageDownloader
	Store      *storage.DatasetStore
}

// NewDatasetService erstellt eine neue Instanz des DatasetService.
func NewDatasetService(cfg *config.Config, logger *zap.Logger, provider providers.Provider, store *storage.DatasetStore) *DatasetService {
	return &DatasetService{
		Config:     cfg,
		Logger:     logger,
		Provider:   provider,
		Extractor:  NewExtractor(logger, cfg.Keywords()),
		Downloader: NewImageDownloader(cfg, logger, store),
		Store:      store,
	}
}

// Build erstellt den Datensatz für eine Query und gibt das
// Ausgabeverzeichnis zurück. Artikel werden auf einem Semaphor-Pool der
// Breite Workers verarbeitet; Workers=1 entspricht der strikt
// sequentiellen Abarbeitung.
func (s *DatasetService) Build(ctx context.Context, query string, limitResults bool, maxArticles int) (string, error) {
	log := s.Logger.With(zap.String("query", query))
	log.Info("Starte Dataset-Erstellung.")

	if err := s.Store.EnsureDirs(); err != nil {
		return "", err
	}

	ids, err := s.Provider.Search(ctx, query, limitResults, maxArticles)
	if err != nil {
		// Fehlgeschlagene Suche degradiert zu einer leeren ID-Liste.
		log.Error("Suche fehlgeschlagen", zap.Error(err))
		ids = nil
	}
	if len(ids) == 0 {
		log.Warn("Keine Artikel gefunden.")
		return s.Config.OutputDir, nil
	}
	log.Info("Starte Verarbeitung", zap.Int("articles", len(ids)))

	workers := s.Config.Workers
	if workers <= 0 {
		workers = 1
	}
	flushEvery := s.Config.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 5
	}

	meta := &models.Metadata{Pairs: []models.DatasetEntry{}}
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)
	completed := 0
	totalPairs := 0

	for _, id := range ids {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(pmcID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			entries := s.processArticle(ctx, pmcID)

			mu.Lock()
			meta.Pairs = append(meta.Pairs, entries...)
			totalPairs += len(entries)
			completed++
			if flushDue(completed, len(ids), flushEvery) {
				if err := s.Store.WriteMetadata(meta); err != nil {
					log.Error("Metadaten konnten nicht geschrieben werden", zap.Error(err))
				}
			}
			mu.Unlock()
			articlesProcessed.Inc()
		}(id)

		time.Sleep(s.Config.ArticleDelay())
	}

	wg.Wait()
	log.Info("Dataset-Erstellung abgeschlossen",
		zap.Int("total_pairs", totalPairs),
		zap.String("output_dir", s.Config.OutputDir),
		zap.String("metadata_file", s.Store.MetadataPath()))
	return s.Config.OutputDir, nil
}

// processArticle verarbeitet einen einzelnen Artikel: XML holen, Figuren
// extrahieren und pro Figur das Bild herunterladen.
func (s *DatasetService) processArticle(ctx context.Context, pmcID string) []models.DatasetEntry {
	log := s.Logger.With(zap.String("pmc_id", pmcID))

	xmlText, err := s.Provider.FetchArticle(ctx, pmcID)
	if err != nil {
		log.Warn("Artikel konnte nicht geladen werden", zap.Error(err))
		return nil
	}

	figures := s.Extractor.Extract(xmlText, pmcID)

	var entries []models.DatasetEntry
	for _, fig := range figures {
		// Rate-Limit-Höflichkeit zwischen zwei Bild-Downloads.
		time.Sleep(s.Config.FigureDelay())

		done, err := s.Downloader.Download(ctx, fig)
		if err != nil {
			downloadFailures.Inc()
			log.Warn("Figur übersprungen",
				zap.String("figure_id", fig.FigureID),
				zap.String("kind", pipeline.KindOf(err).String()),
				zap.Error(err))
			continue
		}

		entries = append(entries, models.DatasetEntry{
			ImagePath: filepath.Base(done.LocalImagePath),
			Caption:   done.Caption,
			PMCID:     done.PMCID,
			FigureID:  done.FigureID,
		})
		pairsExtracted.Inc()
	}

	log.Info("Artikel verarbeitet", zap.Int("pairs", len(entries)))
	return entries
}

// flushDue bestimmt, ob nach dem n-ten fertigen Artikel geschrieben wird:
// nach dem 1., dann alle every Artikel, und immer nach dem letzten.
func flushDue(completed, total, every int) bool {
	return (completed-1)%every == 0 || completed == total
}
