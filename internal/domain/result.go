package domain

// ConversionResult describes a persisted PDF. PageCount is advisory:
// PageCountExact is false when the count was guessed.
type ConversionResult struct {
	OutputPath     string `json:"outputPath"`
	FileSizeBytes  int64  `json:"fileSize"`
	PageCount      int    `json:"pageCount"`
	PageCountExact bool   `json:"pageCountExact"`
	Cached         bool   `json:"cached,omitempty"`
}
