package providers

import "context"

// Provider ist das Interface, das eine Artikelquelle implementieren muss.
type Provider interface {
	// Search liefert die Artikel-IDs zu einem Suchterm. Bei
	// limitResults=false wird zuerst die Gesamttrefferzahl ermittelt und
	// als Limit verwendet.
	Search(ctx context.Context, term string, limitResults bool, maxResults int) ([]string, error)

	// FetchArticle lädt das Volltext-XML eines Artikels.
	FetchArticle(ctx context.Context, id string) (string, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "pubmed").
	Name() string
}
