// Einmal-Lauf: erstellt einen Bild/Caption-Datensatz aus PMC-Artikeln
// und beendet sich danach. Flags übersteuern die Umgebungskonfiguration.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmc-figures/config"
	"pmc-figures/providers/pubmed"
	"pmc-figures/services"
	"pmc-figures/storage"
)

func main() {
	var (
		query       string
		outputDir   string
		maxArticles int
		allResults  bool
		workers     int
	)

	rootCmd := &cobra.Command{
		Use:   "build",
		Short: "Erstellt einen Bild/Caption-Datensatz aus PMC-Artikeln",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging, err := zap.NewProduction()
			if err != nil {
				log.Fatalf("can't initialize zap logger: %v", err)
			}
			defer logging.Sync()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config laden: %w", err)
			}

			if cmd.Flags().Changed("query") {
				cfg.Query = query
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputDir = outputDir
			}
			if cmd.Flags().Changed("max-articles") {
				cfg.MaxArticles = maxArticles
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if allResults {
				cfg.LimitResults = false
			}

			store := storage.NewDatasetStore(cfg.OutputDir)
			provider := pubmed.NewFetcher(cfg, logging)
			datasetService := services.NewDatasetService(cfg, logging, provider, store)

			dir, err := datasetService.Build(cmd.Context(), cfg.Query, cfg.LimitResults, cfg.MaxArticles)
			if err != nil {
				return err
			}

			fmt.Println(dir)
			return nil
		},
	}

	rootCmd.Flags().StringVar(&query, "query", "", "Suchterm (Default aus QUERY)")
	rootCmd.Flags().StringVar(&outputDir, "out", "", "Ausgabeverzeichnis (Default aus OUTPUT_DIR)")
	rootCmd.Flags().IntVar(&maxArticles, "max-articles", 0, "maximale Artikelzahl (Default aus MAX_ARTICLES)")
	rootCmd.Flags().BoolVar(&allResults, "all", false, "alle Treffer verarbeiten statt max-articles")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "gleichzeitig verarbeitete Artikel (1 = sequentiell)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
