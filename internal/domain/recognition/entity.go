package recognition

import (
	"fmt"
	"strings"
	"time"
)

// SpeciesType enum
type SpeciesType string

const (
	SpeciesPlant  SpeciesType = "plant"
	SpeciesAnimal SpeciesType = "animal"
)

// Classification value object: output of the external model for one image.
type Classification struct {
	Type           SpeciesType `json:"type"`
	ScientificName string      `json:"scientificName"`
	CommonName     string      `json:"commonName"`
	Description    string      `json:"description"`
	Confidence     float64     `json:"confidence"`
}

// Validate checks the model output against the contract. Out-of-range values
// are rejected, never clamped.
func (c Classification) Validate() error {
	if c.Type != SpeciesPlant && c.Type != SpeciesAnimal {
		return fmt.Errorf("%w: type must be %q or %q, got %q", ErrClassificationInvalid, SpeciesPlant, SpeciesAnimal, c.Type)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be within [0,1], got %v", ErrClassificationInvalid, c.Confidence)
	}
	if strings.TrimSpace(c.ScientificName) == "" {
		return fmt.Errorf("%w: scientificName is empty", ErrClassificationInvalid)
	}
	if strings.TrimSpace(c.CommonName) == "" {
		return fmt.Errorf("%w: commonName is empty", ErrClassificationInvalid)
	}
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("%w: description is empty", ErrClassificationInvalid)
	}
	return nil
}

// Aggregate Root: Record, one persisted recognition event.
// Immutable once written; (SubjectID, Timestamp) is the storage key.
type Record struct {
	SubjectID     string `json:"userId"`
	Timestamp     int64  `json:"timestamp"` // unix millis, sort key
	RecognitionID string `json:"recognitionId"`
	ImageKey      string `json:"imageKey"`
	Classification
	CreatedAt time.Time `json:"createdAt"`
}

// OwnerPrefix returns the storage-key namespace for a subject.
func OwnerPrefix(subjectID string) string {
	return "users/" + subjectID + "/"
}

// ImageKey derives a collision-resistant storage key for a fresh upload.
func ImageKey(subjectID string, ts int64, extension string) string {
	return fmt.Sprintf("%simage-%d.%s", OwnerPrefix(subjectID), ts, extension)
}

// KeyOwnedBy reports whether key sits inside the subject's namespace.
// Keys are minted namespaced at upload time; a key outside the caller's
// namespace must never be credentialed.
func KeyOwnedBy(key, subjectID string) bool {
	return subjectID != "" && strings.HasPrefix(key, OwnerPrefix(subjectID))
}
