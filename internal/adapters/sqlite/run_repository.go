package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"gorm.io/gorm"
)

type validationRunModel struct {
	Seq              int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	RunID            string    `gorm:"column:run_id;not null"`
	TenantID         string    `gorm:"column:tenant_id;not null"`
	SchemaName       string    `gorm:"column:schema_name;not null"`
	Session          string    `gorm:"column:session;not null"`
	Actor            string    `gorm:"column:actor;not null"`
	Status           string    `gorm:"column:status;not null"`
	Passed           bool      `gorm:"column:passed;not null"`
	Decision         string    `gorm:"column:decision;not null"`
	TotalRows        int       `gorm:"column:total_rows;not null"`
	ValidRows        int       `gorm:"column:valid_rows;not null"`
	RowsWithErrors   int       `gorm:"column:rows_with_errors;not null"`
	RowsWithWarnings int       `gorm:"column:rows_with_warnings;not null"`
	ErrorCount       int       `gorm:"column:error_count;not null"`
	WarningCount     int       `gorm:"column:warning_count;not null"`
	InfoCount        int       `gorm:"column:info_count;not null"`
	StartedAt        time.Time `gorm:"column:started_at;not null"`
	FinishedAt       time.Time `gorm:"column:finished_at;not null"`
}

func (validationRunModel) TableName() string {
	return "validation_runs"
}

// RunRepository stores run summaries and enqueues their outbox events.
type RunRepository struct {
	db *gormsqlite.DB
}

func NewRunRepository(db *gormsqlite.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Record(ctx context.Context, run domain.ValidationRun, event domain.EventEnvelope) (domain.ValidationRun, error) {
	model := toRunModel(run)
	payload, err := json.Marshal(event)
	if err != nil {
		return domain.ValidationRun{}, fmt.Errorf("marshal outbox payload: %w", err)
	}

	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert validation run: %w", err)
		}
		outbox := outboxEventModel{
			EventID:       event.EventID,
			TenantID:      event.TenantID,
			Topic:         domain.EventTopic(event.TenantID, event.EventType),
			PayloadJSON:   string(payload),
			Status:        "pending",
			Attempts:      0,
			NextAttemptAt: event.OccurredAt,
			LastError:     "",
			CreatedAt:     event.OccurredAt,
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ValidationRun{}, err
	}
	return toRunDomain(model), nil
}

func (r *RunRepository) Get(ctx context.Context, tenantID, id string) (domain.ValidationRun, error) {
	var model validationRunModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("tenant_id = ? AND run_id = ?", tenantID, id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ValidationRun{}, domain.ErrNotFound
		}
		return domain.ValidationRun{}, fmt.Errorf("get validation run: %w", err)
	}
	return toRunDomain(model), nil
}

func (r *RunRepository) List(ctx context.Context, filter domain.RunFilter) ([]domain.ValidationRun, error) {
	var rows []validationRunModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&validationRunModel{}).Where("tenant_id = ?", filter.TenantID)
		if filter.SchemaName != "" {
			query = query.Where("schema_name = ?", filter.SchemaName)
		}
		if filter.Session != "" {
			query = query.Where("session = ?", filter.Session)
		}
		if filter.BeforeID > 0 {
			query = query.Where("seq < ?", filter.BeforeID)
		}
		return query.Order("seq DESC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}

	result := make([]domain.ValidationRun, 0, len(rows))
	for _, row := range rows {
		result = append(result, toRunDomain(row))
	}
	return result, nil
}

// PruneBefore deletes runs that finished before cutoff. Outbox rows are kept
// until they are delivered or dead-lettered.
func (r *RunRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("finished_at < ?", cutoff.UTC()).Delete(&validationRunModel{})
		if res.Error != nil {
			return fmt.Errorf("prune validation runs: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func toRunModel(run domain.ValidationRun) validationRunModel {
	return validationRunModel{
		RunID:            run.ID,
		TenantID:         run.TenantID,
		SchemaName:       run.SchemaName,
		Session:          run.Session,
		Actor:            run.Actor,
		Status:           string(run.Status),
		Passed:           run.Passed,
		Decision:         string(run.Decision),
		TotalRows:        run.Summary.Total,
		ValidRows:        run.Summary.Valid,
		RowsWithErrors:   run.Summary.WithErrors,
		RowsWithWarnings: run.Summary.WithWarnings,
		ErrorCount:       run.ErrorCount,
		WarningCount:     run.WarningCount,
		InfoCount:        run.InfoCount,
		StartedAt:        run.StartedAt.UTC(),
		FinishedAt:       run.FinishedAt.UTC(),
	}
}

func toRunDomain(model validationRunModel) domain.ValidationRun {
	return domain.ValidationRun{
		Seq:        model.Seq,
		ID:         model.RunID,
		TenantID:   model.TenantID,
		SchemaName: model.SchemaName,
		Session:    model.Session,
		Actor:      model.Actor,
		Status:     domain.RunStatus(model.Status),
		Passed:     model.Passed,
		Decision:   domain.Decision(model.Decision),
		Summary: domain.Summary{
			Total:        model.TotalRows,
			Valid:        model.ValidRows,
			WithErrors:   model.RowsWithErrors,
			WithWarnings: model.RowsWithWarnings,
		},
		ErrorCount:   model.ErrorCount,
		WarningCount: model.WarningCount,
		InfoCount:    model.InfoCount,
		StartedAt:    model.StartedAt,
		FinishedAt:   model.FinishedAt,
	}
}
