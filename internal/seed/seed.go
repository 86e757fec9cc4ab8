package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
)

const (
	defaultSchoolName = "Main Campus"
	defaultORPrefix   = "OR"
)

// EnsureDefaultSchool seeds the development school and its receipt
// sequence so a fresh database can take payments immediately.
func EnsureDefaultSchool(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		school, err := ensureSchoolTx(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureORSequenceTx(ctx, tx, school.ID)
	})
}

func ensureSchoolTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*feedomain.School, error) {
	var school feedomain.School
	err := tx.WithContext(ctx).
		Where("name = ?", defaultSchoolName).
		First(&school).Error
	if err == nil {
		return &school, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	school = feedomain.School{
		ID:        node.Generate(),
		Name:      defaultSchoolName,
		ORPrefix:  defaultORPrefix,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&school).Error; err != nil {
		return nil, err
	}
	return &school, nil
}

func ensureORSequenceTx(ctx context.Context, tx *gorm.DB, schoolID snowflake.ID) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO or_sequences (school_id, last_number, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (school_id) DO NOTHING`,
		schoolID, 0, time.Now().UTC(),
	).Error
}
