package entity

import "time"

// ContactRecord is one normalized contact discovered for a domain.
type ContactRecord struct {
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Phone      string  `json:"phone,omitempty"`
}

// CollectionResult is the stored outcome of collecting one domain.
type CollectionResult struct {
	Domain      string         `json:"domain"`
	Items       []ContactRecord `json:"items"`
	Total       int            `json:"total"`
	CollectedAt time.Time      `json:"collected_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
