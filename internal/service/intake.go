package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/models"
)

// draftSchema describes a new inspection as rendered field values. Blank
// values are dropped before validation, so "required" means non-blank.
const draftSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["zone", "municipality", "street", "number", "inspectionType", "requestDate"],
  "properties": {
    "zone":           {"enum": ["NORTE", "SUR", "ESTE", "OESTE", "CENTRO"]},
    "municipality":   {"type": "string", "maxLength": 120},
    "neighborhood":   {"type": "string", "maxLength": 120},
    "street":         {"type": "string", "maxLength": 200},
    "number":         {"type": "string", "maxLength": 20},
    "customerName":   {"type": "string", "maxLength": 200},
    "customerPhone":  {"type": "string", "pattern": "^[+0-9 ()-]{6,20}$"},
    "inspectionType": {"type": "string", "maxLength": 60},
    "requestDate":    {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
    "scheduledTime":  {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
    "observations":   {"type": "string", "maxLength": 2000}
  }
}`

var (
	draftSchemaOnce sync.Once
	draftSchemaInst *gojsonschema.Schema
	draftSchemaErr  error
)

func loadDraftSchema() (*gojsonschema.Schema, error) {
	draftSchemaOnce.Do(func() {
		draftSchemaInst, draftSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(draftSchema))
	})
	return draftSchemaInst, draftSchemaErr
}

// draftDocument renders the filled fields of rec. Booleans are left out;
// their zero value is a valid answer.
func draftDocument(rec *models.InspectionRecord) map[string]interface{} {
	doc := make(map[string]interface{})
	for _, f := range models.Fields() {
		if f == models.FieldDataConfirmed {
			continue
		}
		if v := strings.TrimSpace(models.FieldValue(rec, f)); v != "" {
			doc[string(f)] = v
		}
	}
	return doc
}

// ValidateDraft checks the shape of a record about to be created. It returns
// a MissingRequiredField or InvalidValue error for the first offending field
// in form order.
func ValidateDraft(rec *models.InspectionRecord) error {
	schema, err := loadDraftSchema()
	if err != nil {
		return fmt.Errorf("failed to load draft schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(draftDocument(rec)))
	if err != nil {
		return fmt.Errorf("failed to validate draft: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var first error
	firstOrder := -1
	for _, re := range result.Errors() {
		field, candidate := describe(re)
		order := field.Order()
		if first == nil || (order >= 0 && (firstOrder < 0 || order < firstOrder)) {
			first, firstOrder = candidate, order
		}
	}
	return first
}

func describe(re gojsonschema.ResultError) (models.Field, error) {
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			f := models.Field(prop)
			return f, apierrors.MissingRequiredField(f)
		}
	}
	f := models.Field(re.Field())
	return f, apierrors.InvalidValue(f, re.Description())
}
