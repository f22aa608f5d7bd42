package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	domain "github.com/bryanwahyu/naturelens/internal/domain/recognition"
)

// mysql duplicate-entry error number
const erDupEntry = 1062

type RecognitionRepository struct {
	db *sql.DB
}

func NewRecognitionRepository(db *sql.DB) *RecognitionRepository {
	return &RecognitionRepository{db: db}
}

// Put insert satu record, immutable. The table's primary key is
// (user_id, ts); a plain INSERT is the conditional write, and the driver's
// duplicate-entry error becomes ErrDuplicateKey.
func (r *RecognitionRepository) Put(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO recognition_history
(user_id, ts, recognition_id, image_key, species_type,
 scientific_name, common_name, description, confidence, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q,
		rec.SubjectID, rec.Timestamp, rec.RecognitionID, rec.ImageKey, rec.Type,
		rec.ScientificName, rec.CommonName, rec.Description, rec.Confidence, rec.CreatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == erDupEntry {
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
WHERE user_id=?
ORDER BY ts DESC
LIMIT ?;
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
