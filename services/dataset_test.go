package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pmc-figures/config"
	"pmc-figures/models"
	"pmc-figures/pipeline"
	"pmc-figures/storage"
)

// fakeProvider ersetzt die E-Utilities in Pipeline-Tests.
type fakeProvider struct {
	ids       []string
	articles  map[string]string
	searchErr error
}

func (p *fakeProvider) Search(_ context.Context, _ string, _ bool, _ int) ([]string, error) {
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return p.ids, nil
}

func (p *fakeProvider) FetchArticle(_ context.Context, id string) (string, error) {
	xmlText, ok := p.articles[id]
	if !ok {
		return "", pipeline.Errorf(pipeline.KindNotFound, "fake.fetch", "unbekannter artikel %s", id)
	}
	return xmlText, nil
}

func (p *fakeProvider) Name() string { return "fake" }

// articleXML baut ein Artikel-XML mit einer Figur pro (id, href)-Paar.
func articleXML(figs ...[2]string) string {
	body := `<article xmlns:xlink="http://www.w3.org/1999/xlink"><body>`
	for _, fig := range figs {
		body += fmt.Sprintf(`<fig id="%s"><caption><p>Fundus caption for %s.</p></caption><graphic xlink:href="%s"/></fig>`,
			fig[0], fig[0], fig[1])
	}
	return body + `</body></article>`
}

func testConfig(outputDir, pageBaseURL string) *config.Config {
	return &config.Config{
		ArticleBaseURL:  pageBaseURL,
		OutputDir:       outputDir,
		Workers:         1,
		FlushEvery:      5,
		CaptionKeywords: "",
	}
}

// newPageServer bedient Artikel-Seiten und Bild-Blobs für die IDs in pages:
// pro Artikel ein img-Tag je href, die Blobs liefern imgBytes.
func newPageServer(t *testing.T, pages map[string][]string, blobs map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for id, hrefs := range pages {
		tags := ""
		for _, href := range hrefs {
			tags += fmt.Sprintf(`<img src="/blobs/%s.jpg">`, href)
		}
		page := "<html><body>" + tags + "</body></html>"
		mux.HandleFunc("/pmc/articles/PMC"+id+"/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(page))
		})
	}
	for href, data := range blobs {
		body := data
		mux.HandleFunc("/blobs/"+href+".jpg", func(w http.ResponseWriter, r *http.Request) {
			w.Write(body)
		})
	}
	return httptest.NewServer(mux)
}

func TestBuild_SearchErrorDegradesToEmptyRun(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, "http://unused.invalid")
	provider := &fakeProvider{searchErr: errors.New("esearch failed: status 500")}
	svc := NewDatasetService(cfg, zap.NewNop(), provider, storage.NewDatasetStore(dir))

	out, err := svc.Build(context.Background(), "glaucoma", true, 10)
	require.NoError(t, err)
	assert.Equal(t, dir, out)

	// Ohne Artikel wird keine metadata.json geschrieben.
	_, statErr := os.Stat(storage.NewDatasetStore(dir).MetadataPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuild_EndToEnd(t *testing.T) {
	imgBytes := testPNG(t)
	ts := newPageServer(t,
		map[string][]string{"123": {"a1"}, "456": {"b1"}},
		map[string][]byte{"a1": imgBytes, "b1": imgBytes})
	defer ts.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, ts.URL)
	provider := &fakeProvider{
		ids: []string{"123", "456"},
		articles: map[string]string{
			"123": articleXML([2]string{"f1", "a1"}),
			"456": articleXML([2]string{"f2", "b1"}),
		},
	}
	store := storage.NewDatasetStore(dir)
	svc := NewDatasetService(cfg, zap.NewNop(), provider, store)

	out, err := svc.Build(context.Background(), "glaucoma", true, 10)
	require.NoError(t, err)
	assert.Equal(t, dir, out)

	meta, err := store.ReadMetadata()
	require.NoError(t, err)
	require.Len(t, meta.Pairs, 2)

	// Workers=1: Reihenfolge entspricht der ID-Liste.
	assert.Equal(t, models.DatasetEntry{
		ImagePath: "PMC123_f1.jpg",
		Caption:   "Fundus caption for f1.",
		PMCID:     "123",
		FigureID:  "f1",
	}, meta.Pairs[0])
	assert.Equal(t, "PMC456_f2.jpg", meta.Pairs[1].ImagePath)

	for _, pair := range meta.Pairs {
		_, statErr := os.Stat(store.ImageDir() + "/" + pair.ImagePath)
		assert.NoError(t, statErr)
	}
}

func TestBuild_DecodeFailureReducesPairCountByOne(t *testing.T) {
	imgBytes := testPNG(t)
	ts := newPageServer(t,
		map[string][]string{"123": {"a1", "a2"}},
		map[string][]byte{"a1": imgBytes, "a2": []byte("kein bild")})
	defer ts.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, ts.URL)
	provider := &fakeProvider{
		ids:      []string{"123"},
		articles: map[string]string{"123": articleXML([2]string{"f1", "a1"}, [2]string{"f2", "a2"})},
	}
	store := storage.NewDatasetStore(dir)
	svc := NewDatasetService(cfg, zap.NewNop(), provider, store)

	_, err := svc.Build(context.Background(), "glaucoma", true, 10)
	require.NoError(t, err)

	// f2 scheitert am Decode, f1 bleibt davon unberührt.
	meta, err := store.ReadMetadata()
	require.NoError(t, err)
	require.Len(t, meta.Pairs, 1)
	assert.Equal(t, "f1", meta.Pairs[0].FigureID)
}

func TestBuild_FetchFailureYieldsZeroFigures(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, "http://unused.invalid")
	provider := &fakeProvider{ids: []string{"999"}, articles: map[string]string{}}
	store := storage.NewDatasetStore(dir)
	svc := NewDatasetService(cfg, zap.NewNop(), provider, store)

	_, err := svc.Build(context.Background(), "glaucoma", true, 10)
	require.NoError(t, err)

	meta, err := store.ReadMetadata()
	require.NoError(t, err)
	assert.Empty(t, meta.Pairs)
}

func TestBuild_BoundedConcurrency(t *testing.T) {
	imgBytes := testPNG(t)
	pages := make(map[string][]string)
	blobs := map[string][]byte{}
	provider := &fakeProvider{articles: map[string]string{}}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("10%d", i)
		href := fmt.Sprintf("h%d", i)
		provider.ids = append(provider.ids, id)
		provider.articles[id] = articleXML([2]string{fmt.Sprintf("f%d", i), href})
		pages[id] = []string{href}
		blobs[href] = imgBytes
	}
	ts := newPageServer(t, pages, blobs)
	defer ts.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, ts.URL)
	cfg.Workers = 3
	store := storage.NewDatasetStore(dir)
	svc := NewDatasetService(cfg, zap.NewNop(), provider, store)

	_, err := svc.Build(context.Background(), "glaucoma", true, 10)
	require.NoError(t, err)

	meta, err := store.ReadMetadata()
	require.NoError(t, err)
	require.Len(t, meta.Pairs, 8)

	var gotIDs []string
	for _, pair := range meta.Pairs {
		gotIDs = append(gotIDs, pair.FigureID)
	}
	assert.ElementsMatch(t, []string{"f0", "f1", "f2", "f3", "f4", "f5", "f6", "f7"}, gotIDs)
}

func TestFlushDue(t *testing.T) {
	// 12 Artikel, Intervall 5: Flush nach dem 1., 6., 11. und letzten.
	total, every := 12, 5
	want := map[int]bool{1: true, 6: true, 11: true, 12: true}
	for completed := 1; completed <= total; completed++ {
		assert.Equal(t, want[completed], flushDue(completed, total, every), "completed=%d", completed)
	}
}
