// Package storage verwaltet das Ausgabeverzeichnis eines Datensatzes:
// das images/-Unterverzeichnis und die metadata.json.
package storage

import (
	"encoding/json"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"pmc-figures/models"
)

// DatasetStore bündelt alle Dateisystem-Zugriffe eines Laufs.
type DatasetStore struct {
	OutputDir string
}

// NewDatasetStore erstellt einen Store für das gegebene Ausgabeverzeichnis.
func NewDatasetStore(outputDir string) *DatasetStore {
	return &DatasetStore{OutputDir: outputDir}
}

// ImageDir gibt das Verzeichnis für die Bilddateien zurück.
func (s *DatasetStore) ImageDir() string {
	return filepath.Join(s.OutputDir, "images")
}

// MetadataPath gibt den Pfad der metadata.json zurück.
func (s *DatasetStore) MetadataPath() string {
	return filepath.Join(s.OutputDir, "metadata.json")
}

// EnsureDirs legt Ausgabe- und Bildverzeichnis an, falls sie fehlen.
func (s *DatasetStore) EnsureDirs() error {
	return os.MkdirAll(s.ImageDir(), 0o755)
}

// SaveJPEG kodiert ein Bild als JPEG und schreibt es unter dem gegebenen
// Dateinamen ins Bildverzeichnis. Rückgabe ist der vollständige Pfad.
func (s *DatasetStore) SaveJPEG(filename string, img image.Image) (string, error) {
	path := filepath.Join(s.ImageDir(), filename)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := jpeg.Encode(f, img, nil); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMetadata serialisiert den gesamten Stand als eingerücktes JSON und
// überschreibt die metadata.json vollständig.
func (s *DatasetStore) WriteMetadata(meta *models.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.MetadataPath(), data, 0o644)
}

// ReadMetadata lädt die metadata.json zurück.
func (s *DatasetStore) ReadMetadata() (*models.Metadata, error) {
	data, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		return nil, err
	}
	var meta models.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
