package storage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmc-figures/models"
)

func TestEnsureDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store := NewDatasetStore(dir)

	require.NoError(t, store.EnsureDirs())
	info, err := os.Stat(store.ImageDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent.
	require.NoError(t, store.EnsureDirs())
}

func TestSaveJPEG(t *testing.T) {
	store := NewDatasetStore(t.TempDir())
	require.NoError(t, store.EnsureDirs())

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	path, err := store.SaveJPEG("PMC123_f1.jpg", img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.ImageDir(), "PMC123_f1.jpg"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, format, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestMetadataRoundTrip(t *testing.T) {
	store := NewDatasetStore(t.TempDir())
	require.NoError(t, store.EnsureDirs())

	meta := &models.Metadata{Pairs: []models.DatasetEntry{{
		ImagePath: "PMC123_fig1.jpg",
		Caption:   "Fundus photograph of the right eye.",
		PMCID:     "123",
		FigureID:  "fig1",
	}}}
	require.NoError(t, store.WriteMetadata(meta))

	got, err := store.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestWriteMetadataOverwritesWholesale(t *testing.T) {
	store := NewDatasetStore(t.TempDir())
	require.NoError(t, store.EnsureDirs())

	require.NoError(t, store.WriteMetadata(&models.Metadata{Pairs: []models.DatasetEntry{
		{ImagePath: "a.jpg", PMCID: "1", FigureID: "f1"},
		{ImagePath: "b.jpg", PMCID: "2", FigureID: "f2"},
	}}))
	require.NoError(t, store.WriteMetadata(&models.Metadata{Pairs: []models.DatasetEntry{
		{ImagePath: "c.jpg", PMCID: "3", FigureID: "f3"},
	}}))

	got, err := store.ReadMetadata()
	require.NoError(t, err)
	require.Len(t, got.Pairs, 1)
	assert.Equal(t, "c.jpg", got.Pairs[0].ImagePath)
}

func TestReadMetadata_Missing(t *testing.T) {
	store := NewDatasetStore(t.TempDir())
	_, err := store.ReadMetadata()
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
