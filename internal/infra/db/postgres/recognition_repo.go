package postgres

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/lib/pq"

    domain "github.com/bryanwahyu/naturelens/internal/domain/recognition"
)

// postgres unique_violation
const codeUniqueViolation = "23505"

type RecognitionRepository struct { db *sql.DB }

func NewRecognitionRepository(db *sql.DB) *RecognitionRepository { return &RecognitionRepository{db: db} }

// Put insert satu record. Primary key (user_id, ts); unique_violation maps
// to ErrDuplicateKey so the orchestrator can retry with a fresh timestamp.
func (r *RecognitionRepository) Put(ctx context.Context, rec *domain.Record) error {
    const q = `
INSERT INTO recognition_history
(user_id, ts, recognition_id, image_key, species_type,
 scientific_name, common_name, description, confidence, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
`
    _, err := r.db.ExecContext(ctx, q,
        rec.SubjectID, rec.Timestamp, rec.RecognitionID, rec.ImageKey, rec.Type,
        rec.ScientificName, rec.CommonName, rec.Description, rec.Confidence, rec.CreatedAt,
    )
    if err != nil {
        var pe *pq.Error
        if errors.As(err, &pe) && string(pe.Code) == codeUniqueViolation {
            return fmt.Errorf("%w: user_id=%s ts=%d", domain.ErrDuplicateKey, rec.SubjectID, rec.Timestamp)
        }
        return err
    }
    return nil
}

// Query ambil N record terakhir per subject, newest first.
func (r *RecognitionRepository) Query(ctx context.Context, subjectID string, limit int) ([]*domain.Record, error) {
    const q = `
SELECT user_id, ts, recognition_id, image_key, species_type,
       scientific_name, common_name, description, confidence, created_at
FROM recognition_history
WHERE user_id=$1
ORDER BY ts DESC
LIMIT $2;
`
    rows, err := r.db.QueryContext(ctx, q, subjectID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []*domain.Record
    for rows.Next() {
        var rec domain.Record
        if err := rows.Scan(
            &rec.SubjectID, &rec.Timestamp, &rec.RecognitionID, &rec.ImageKey, &rec.Type,
            &rec.ScientificName, &rec.CommonName, &rec.Description, &rec.Confidence, &rec.CreatedAt,
        ); err != nil {
            return nil, err
        }
        out = append(out, &rec)
    }
    return out, rows.Err()
}
