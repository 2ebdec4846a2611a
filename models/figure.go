package models

// FigureRecord repräsentiert eine aus dem Artikel-XML extrahierte Figur
// samt Caption und Bildreferenz. Nach erfolgreichem Download wird
// LocalImagePath gesetzt; danach wird der Record nicht mehr verändert.
type FigureRecord struct {
	PMCID          string `json:"pmc_id"`
	FigureID       string `json:"figure_id"`
	Caption        string `json:"caption"`
	ImageHref      string `json:"image_href"`
	LocalImagePath string `json:"local_image_path,omitempty"`
}
