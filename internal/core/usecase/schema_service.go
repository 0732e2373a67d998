package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
)

//go:embed schema_definition.json
var schemaDefinitionJSON []byte

// SchemaService manages per-tenant column schemas. Schema documents received
// over the wire are checked against a JSON Schema before they are decoded.
type SchemaService struct {
	repo       ports.SchemaRepository
	definition *santhosh.Schema
	cache      sync.Map // key: "tenantID/name" → domain.Schema
}

func NewSchemaService(repo ports.SchemaRepository) (*SchemaService, error) {
	definition, err := compileSchema(schemaDefinitionJSON)
	if err != nil {
		return nil, fmt.Errorf("compile schema definition: %w", err)
	}
	return &SchemaService{repo: repo, definition: definition}, nil
}

// UpsertDocument registers a schema from its JSON document. The document's
// name, when present, must match name.
func (s *SchemaService) UpsertDocument(ctx context.Context, tenantID, name string, doc json.RawMessage) (domain.StoredSchema, error) {
	schema, err := s.DecodeDocument(doc)
	if err != nil {
		return domain.StoredSchema{}, err
	}
	if schema.Name == "" {
		schema.Name = name
	}
	if schema.Name != name {
		return domain.StoredSchema{}, &domain.SchemaDefinitionError{
			Problems: []string{fmt.Sprintf("document name %q does not match %q", schema.Name, name)},
		}
	}
	return s.Upsert(ctx, tenantID, schema)
}

// DecodeDocument checks doc against the schema definition and decodes it.
// Numbers in validValues are kept as json.Number.
func (s *SchemaService) DecodeDocument(doc json.RawMessage) (domain.Schema, error) {
	if !json.Valid(doc) {
		return domain.Schema{}, &domain.SchemaDefinitionError{Problems: []string{"schema must be valid json"}}
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return domain.Schema{}, fmt.Errorf("unmarshal schema: %w", err)
	}
	if err := s.definition.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return domain.Schema{}, &domain.SchemaDefinitionError{Problems: collectValidationErrors(ve)}
		}
		return domain.Schema{}, &domain.SchemaDefinitionError{Problems: []string{err.Error()}}
	}

	var schema domain.Schema
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&schema); err != nil {
		return domain.Schema{}, &domain.SchemaDefinitionError{Problems: []string{err.Error()}}
	}
	return schema, nil
}

func (s *SchemaService) Upsert(ctx context.Context, tenantID string, schema domain.Schema) (domain.StoredSchema, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return domain.StoredSchema{}, err
	}
	if err := schema.Validate(); err != nil {
		return domain.StoredSchema{}, err
	}
	s.cache.Delete(tenantID + "/" + schema.Name)
	return s.repo.Upsert(ctx, domain.StoredSchema{TenantID: tenantID, Schema: schema})
}

func (s *SchemaService) Get(ctx context.Context, tenantID, name string) (domain.StoredSchema, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return domain.StoredSchema{}, err
	}
	if err := domain.ValidateName(name); err != nil {
		return domain.StoredSchema{}, err
	}
	return s.repo.Get(ctx, tenantID, name)
}

func (s *SchemaService) List(ctx context.Context, tenantID string) ([]domain.StoredSchema, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID)
}

func (s *SchemaService) Delete(ctx context.Context, tenantID, name string) (bool, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return false, err
	}
	if err := domain.ValidateName(name); err != nil {
		return false, err
	}
	s.cache.Delete(tenantID + "/" + name)
	return s.repo.Delete(ctx, tenantID, name)
}

// Resolve returns the schema a run evaluates against, from cache when possible.
func (s *SchemaService) Resolve(ctx context.Context, tenantID, name string) (domain.Schema, error) {
	cacheKey := tenantID + "/" + name
	if cached, ok := s.cache.Load(cacheKey); ok {
		return cached.(domain.Schema), nil
	}

	stored, err := s.Get(ctx, tenantID, name)
	if err != nil {
		return domain.Schema{}, err
	}
	s.cache.Store(cacheKey, stored.Schema)
	return stored.Schema, nil
}

func compileSchema(schemaJSON []byte) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		location := ve.InstanceLocation
		if location == "" {
			location = "/"
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", location, ve.Message))
	}
	return msgs
}
