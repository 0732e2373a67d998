package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/tabcheck/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type columnSchemaModel struct {
	TenantID    string    `gorm:"column:tenant_id;primaryKey"`
	Name        string    `gorm:"column:name;primaryKey"`
	ColumnsJSON string    `gorm:"column:columns_json;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (columnSchemaModel) TableName() string {
	return "column_schemas"
}

type SchemaRepository struct {
	db *gormsqlite.DB
}

func NewSchemaRepository(db *gormsqlite.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func (r *SchemaRepository) Upsert(ctx context.Context, schema domain.StoredSchema) (domain.StoredSchema, error) {
	columns, err := json.Marshal(schema.Schema.Columns)
	if err != nil {
		return domain.StoredSchema{}, fmt.Errorf("marshal columns: %w", err)
	}
	now := time.Now().UTC()
	model := columnSchemaModel{
		TenantID:    schema.TenantID,
		Name:        schema.Schema.Name,
		ColumnsJSON: string(columns),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var out domain.StoredSchema
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"columns_json", "updated_at"}),
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("upsert schema: %w", err)
		}

		var saved columnSchemaModel
		if err := tx.Where("tenant_id = ? AND name = ?", schema.TenantID, schema.Schema.Name).First(&saved).Error; err != nil {
			return fmt.Errorf("load upserted schema: %w", err)
		}
		out, err = toSchemaDomain(saved)
		return err
	})
	if err != nil {
		return domain.StoredSchema{}, err
	}
	return out, nil
}

func (r *SchemaRepository) Get(ctx context.Context, tenantID, name string) (domain.StoredSchema, error) {
	var model columnSchemaModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("tenant_id = ? AND name = ?", tenantID, name).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StoredSchema{}, domain.ErrNotFound
		}
		return domain.StoredSchema{}, fmt.Errorf("get schema: %w", err)
	}
	return toSchemaDomain(model)
}

func (r *SchemaRepository) List(ctx context.Context, tenantID string) ([]domain.StoredSchema, error) {
	var rows []columnSchemaModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("tenant_id = ?", tenantID).Order("name ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}

	result := make([]domain.StoredSchema, 0, len(rows))
	for _, row := range rows {
		s, err := toSchemaDomain(row)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *SchemaRepository) Delete(ctx context.Context, tenantID, name string) (bool, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("tenant_id = ? AND name = ?", tenantID, name).Delete(&columnSchemaModel{})
		if res.Error != nil {
			return fmt.Errorf("delete schema: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func toSchemaDomain(model columnSchemaModel) (domain.StoredSchema, error) {
	var columns []domain.Column
	dec := json.NewDecoder(bytes.NewReader([]byte(model.ColumnsJSON)))
	dec.UseNumber()
	if err := dec.Decode(&columns); err != nil {
		return domain.StoredSchema{}, fmt.Errorf("decode columns of %s/%s: %w", model.TenantID, model.Name, err)
	}
	return domain.StoredSchema{
		TenantID:  model.TenantID,
		Schema:    domain.Schema{Name: model.Name, Columns: columns},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
