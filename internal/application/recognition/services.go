package recognition

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domain "github.com/bryanwahyu/naturelens/internal/domain/recognition"
)

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Policy TTLs. These are caller policy, not signer constraints.
const (
	UploadTTL = 15 * time.Minute
	ReadTTL   = time.Hour

	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100

	defaultExtension = "jpg"
)

var extensionRe = regexp.MustCompile(`^[a-zA-Z0-9]{1,8}$`)

// Service implements use-cases untuk recognition.
// Stateless per request; safe for unlimited concurrent invocations.
type Service struct {
	Repo       domain.Repository
	Signer     domain.Signer
	Classifier domain.Classifier
	Clock      Clock
}

//
// ==== USE CASES ====
//

// UploadSlot is the response of RequestUploadSlot.
type UploadSlot struct {
	UploadURL string `json:"uploadUrl"`
	ImageKey  string `json:"imageKey"`
	ExpiresIn int    `json:"expiresIn"`
}

// RequestUploadSlot mints a write credential for a fresh, subject-namespaced
// key. Nothing is persisted here; the key only exists once the client uploads.
func (s *Service) RequestUploadSlot(ctx context.Context, subjectID, fileExtension string) (UploadSlot, error) {
	if subjectID == "" {
		return UploadSlot{}, fmt.Errorf("%w: subject identity is required", domain.ErrUnauthorized)
	}

	ext := sanitizeExtension(fileExtension)
	key := domain.ImageKey(subjectID, s.Clock.Now().UnixMilli(), ext)

	url, err := s.Signer.IssueWrite(ctx, key, UploadTTL, "image/"+ext)
	if err != nil {
		return UploadSlot{}, err
	}

	return UploadSlot{
		UploadURL: url,
		ImageKey:  key,
		ExpiresIn: int(UploadTTL / time.Second),
	}, nil
}

// sanitizeExtension strips a leading dot and falls back to jpg when the value
// is empty or not a plain alphanumeric extension.
func sanitizeExtension(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if !extensionRe.MatchString(ext) {
		return defaultExtension
	}
	return strings.ToLower(ext)
}

// Recognize runs the pipeline for one stored image:
// validate → read credential → classify → persist → return.
// Stages are strictly sequential; only the persistence stage retries, once,
// on a sort-key collision.
func (s *Service) Recognize(ctx context.Context, subjectID, imageKey string) (*domain.Record, error) {
	// Stage 1: validate. No external collaborator is contacted on failure.
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject identity is required", domain.ErrUnauthorized)
	}
	if imageKey == "" {
		return nil, fmt.Errorf("%w: imageKey is required", domain.ErrBadRequest)
	}
	if !domain.KeyOwnedBy(imageKey, subjectID) {
		return nil, fmt.Errorf("%w: imageKey is outside the caller's namespace", domain.ErrBadRequest)
	}

	// Stage 2: read credential for the external model. The URL is used for
	// exactly one classification call and never returned to the client.
	imageURL, err := s.Signer.IssueRead(ctx, imageKey, ReadTTL)
	if err != nil {
		return nil, err
	}

	// Stage 3: classify. Adapter failures propagate as-is.
	cls, err := s.Classifier.Classify(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	// Stage 4: persist. One retry with a fresh timestamp on collision.
	rec, err := s.persist(ctx, subjectID, imageKey, cls)
	if err != nil {
		return nil, err
	}

	// Stage 5: return.
	return rec, nil
}

func (s *Service) persist(ctx context.Context, subjectID, imageKey string, cls domain.Classification) (*domain.Record, error) {
	now := s.Clock.Now()
	rec := s.newRecord(subjectID, imageKey, cls, now, now.UnixMilli())

	err := s.Repo.Put(ctx, rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrDuplicateKey) {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	// Collision on (subject, ts): capture a fresh timestamp and retry once.
	retryAt := s.Clock.Now()
	ts := retryAt.UnixMilli()
	if ts <= rec.Timestamp {
		ts = rec.Timestamp + 1
	}
	rec = s.newRecord(subjectID, imageKey, cls, retryAt, ts)

	if err := s.Repo.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: collision retry exhausted: %v", domain.ErrPersistenceFailure, err)
	}
	return rec, nil
}

func (s *Service) newRecord(subjectID, imageKey string, cls domain.Classification, now time.Time, ts int64) *domain.Record {
	return &domain.Record{
		SubjectID:      subjectID,
		Timestamp:      ts,
		RecognitionID:  "rec-" + uuid.New().String(),
		ImageKey:       imageKey,
		Classification: cls,
		CreatedAt:      now.UTC(),
	}
}

// HistoryItem is one history record enriched with a fresh read URL.
type HistoryItem struct {
	RecognitionID  string             `json:"recognitionId"`
	Timestamp      int64              `json:"timestamp"`
	CreatedAt      time.Time          `json:"createdAt"`
	Type           domain.SpeciesType `json:"type"`
	ScientificName string             `json:"scientificName"`
	CommonName     string             `json:"commonName"`
	Description    string             `json:"description"`
	Confidence     float64            `json:"confidence"`
	ImageURL       string             `json:"imageUrl"`
	ImageKey       string             `json:"imageKey"`
}

// ListHistory returns up to limit records, newest first, each carrying a fresh
// 1-hour read URL. Enrichment runs concurrently per item but the response is
// all-or-nothing and preserves the store's descending order.
func (s *Service) ListHistory(ctx context.Context, subjectID string, limit int) ([]HistoryItem, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject identity is required", domain.ErrUnauthorized)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	recs, err := s.Repo.Query(ctx, subjectID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			url, err := s.Signer.IssueRead(gctx, rec.ImageKey, ReadTTL)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrEnrichmentFailure, err)
			}
			items[i] = HistoryItem{
				RecognitionID:  rec.RecognitionID,
				Timestamp:      rec.Timestamp,
				CreatedAt:      rec.CreatedAt,
				Type:           rec.Type,
				ScientificName: rec.ScientificName,
				CommonName:     rec.CommonName,
				Description:    rec.Description,
				Confidence:     rec.Confidence,
				ImageURL:       url,
				ImageKey:       rec.ImageKey,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
