// Package pubmed enthält die Logik für die Interaktion mit der PMC
// E-Utilities API (ESearch und EFetch).
package pubmed

// ESearchResponse repräsentiert die JSON-Antwort von ESearch für die ID-Suche.
type ESearchResponse struct {
	ESearchResult struct {
		IdList []string `json:"idlist"`
	} `json:"esearchresult"`
}
