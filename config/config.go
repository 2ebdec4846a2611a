package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	EutilsBaseURL  string `envconfig:"EUTILS_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	ArticleBaseURL string `envconfig:"PMC_ARTICLE_BASE_URL" default:"https://www.ncbi.nlm.nih.gov"`
	APIKey         string `envconfig:"PMC_API_KEY"`
	Email          string `envconfig:"PMC_EMAIL"`
	Tool           string `envconfig:"PMC_TOOL" default:"pmc-figures"`

	// Standard-Query und Ausgabeziel für Cron- und CLI-Läufe.
	Query        string `envconfig:"QUERY" default:"glaucoma"`
	OutputDir    string `envconfig:"OUTPUT_DIR" default:"pmc_dataset"`
	MaxArticles  int    `envconfig:"MAX_ARTICLES" default:"100"`
	LimitResults bool   `envconfig:"LIMIT_RESULTS" default:"true"`

	// Workers steuert die Anzahl gleichzeitig verarbeiteter Artikel.
	// 1 erzwingt eine strikt sequentielle Verarbeitung.
	Workers    int `envconfig:"WORKERS" default:"5"`
	FlushEvery int `envconfig:"FLUSH_EVERY" default:"5"`

	// Höflichkeitspausen gegenüber der NCBI-Infrastruktur.
	FigureDelayMS  int `envconfig:"FIGURE_DELAY_MS" default:"500"`
	ArticleDelayMS int `envconfig:"ARTICLE_DELAY_MS" default:"1000"`

	// Kommagetrennte Schlagwörter; nur Captions mit mindestens einem
	// Treffer werden übernommen. Leer = kein Filter.
	CaptionKeywords string `envconfig:"CAPTION_KEYWORDS" default:"fundus,oct,octa"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	CronSchedule string `envconfig:"CRON_SCHEDULE"`
}

// Keywords zerlegt CaptionKeywords in eine bereinigte Liste.
func (c *Config) Keywords() []string {
	var keywords []string
	for _, kw := range strings.Split(c.CaptionKeywords, ",") {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// FigureDelay gibt die Pause zwischen zwei Bild-Downloads zurück.
func (c *Config) FigureDelay() time.Duration {
	return time.Duration(c.FigureDelayMS) * time.Millisecond
}

// ArticleDelay gibt die Pause zwischen zwei Artikeln zurück.
func (c *Config) ArticleDelay() time.Duration {
	return time.Duration(c.ArticleDelayMS) * time.Millisecond
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
