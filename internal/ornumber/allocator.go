// Package ornumber allocates official receipt numbers from a per-school
// sequence. Allocation is atomic so two cashiers can never draw the same
// number, and the sequence has no gaps unless an enclosing transaction
// rolls back.
package ornumber

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSequenceUnavailable = errors.New("or_sequence_unavailable")

// Allocator hands out the next official receipt number for a school.
type Allocator interface {
	// Allocate draws the next number inside the caller's transaction so a
	// rollback returns the number to the sequence.
	Allocate(ctx context.Context, db *gorm.DB, schoolID snowflake.ID) (string, error)
}

type Params struct {
	fx.In

	Log *zap.Logger

	Clock clock.Clock
}

type allocator struct {
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) Allocator {
	return &allocator{
		log:   p.Log.Named("ornumber.allocator"),
		clock: p.Clock,
	}
}

func (a *allocator) Allocate(ctx context.Context, db *gorm.DB, schoolID snowflake.ID) (string, error) {
	now := a.clock.Now()

	// bootstrap the sequence row on first use
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO or_sequences (school_id, last_number, updated_at)
		 VALUES (?, 0, ?)
		 ON CONFLICT (school_id) DO NOTHING`,
		schoolID, now,
	).Error; err != nil {
		return "", err
	}

	var seq struct {
		LastNumber int64
	}
	if err := db.WithContext(ctx).Raw(
		`UPDATE or_sequences
		 SET last_number = last_number + 1, updated_at = ?
		 WHERE school_id = ?
		 RETURNING last_number`,
		now, schoolID,
	).Scan(&seq).Error; err != nil {
		return "", err
	}
	if seq.LastNumber == 0 {
		return "", ErrSequenceUnavailable
	}

	var school struct {
		OrPrefix string
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT or_prefix FROM schools WHERE id = ?`, schoolID,
	).Scan(&school).Error; err != nil {
		return "", err
	}
	prefix := school.OrPrefix
	if prefix == "" {
		prefix = "OR"
	}

	return fmt.Sprintf("%s-%06d", prefix, seq.LastNumber), nil
}
