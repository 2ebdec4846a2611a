package models

// DatasetEntry ist ein fertiges Bild/Caption-Paar, wie es in der
// metadata.json landet. ImagePath enthält nur den Dateinamen, nicht den
// vollständigen Pfad.
type DatasetEntry struct {
	ImagePath string `json:"image_path"`
	Caption   string `json:"caption"`
	PMCID     string `json:"pmc_id"`
	FigureID  string `json:"figure_id"`
}

// Metadata ist das Wurzelobjekt der metadata.json. Die Paare stehen in
// Entdeckungsreihenfolge; Eindeutigkeit wird nicht erzwungen.
type Metadata struct {
	Pairs []DatasetEntry `json:"pairs"`
}
