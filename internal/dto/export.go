package dto

import "time"

// ExportRequest selects the gradebook export format.
type ExportRequest struct {
	Format string `json:"format" validate:"omitempty,oneof=csv pdf"`
}

// ExportResult points at a generated export file.
type ExportResult struct {
	ID        string    `json:"id"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
