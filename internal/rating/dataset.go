package rating

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
)

//go:embed ratings.schema.json
var ratingsSchemaJSON string

// Dataset is a validated ratings payload.
type Dataset struct {
	DatasetVersion string         `json:"dataset_version"`
	Sources        []DatasetEntry `json:"sources"`
}

// DatasetEntry is one outlet's rating in a dataset payload.
type DatasetEntry struct {
	SourceKey   string  `json:"source_key"`
	SourceID    *string `json:"source_id,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Bias        int     `json:"bias"`
	Reliability int     `json:"reliability"`
}

var (
	ratingsSchemaOnce sync.Once
	ratingsSchema     *jsonschema.Schema
	ratingsSchemaErr  error
)

// ValidateDataset checks a ratings payload against the embedded schema
// and returns the parsed dataset. Out-of-range bias scores, unknown
// fields, and trailing content all fail validation.
func ValidateDataset(payload json.RawMessage) (*Dataset, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode dataset JSON: %w", err)
	}

	schema, err := loadRatingsSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize dataset JSON: %w", err)
	}

	var dataset Dataset
	if err := json.Unmarshal(normalized, &dataset); err != nil {
		return nil, fmt.Errorf("unmarshal dataset: %w", err)
	}

	seen := make(map[string]struct{}, len(dataset.Sources))
	for i, entry := range dataset.Sources {
		key := NormalizeKey(entry.SourceKey)
		if key == "" {
			return nil, fmt.Errorf("sources[%d].source_key must not be blank", i)
		}
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("sources[%d] duplicates source_key %q", i, key)
		}
		seen[key] = struct{}{}
	}
	return &dataset, nil
}

// DatasetStore is the persistence surface dataset loading needs.
type DatasetStore interface {
	UpsertSourceRating(ctx context.Context, rating db.SourceRating) error
}

// LoadDataset validates a payload and upserts every entry. Keys and
// lookup fields are lowercased on the way in to match resolver lookups.
func LoadDataset(ctx context.Context, store DatasetStore, payload json.RawMessage) (int, error) {
	dataset, err := ValidateDataset(payload)
	if err != nil {
		return 0, err
	}

	now := globaltime.Now().UTC()
	for _, entry := range dataset.Sources {
		row := db.SourceRating{
			SourceKey:   NormalizeKey(entry.SourceKey),
			Bias:        entry.Bias,
			Reliability: entry.Reliability,
			UpdatedAt:   now,
		}
		if entry.SourceID != nil {
			normalized := NormalizeKey(*entry.SourceID)
			if normalized != "" {
				row.SourceID = &normalized
			}
		}
		if entry.DisplayName != nil {
			trimmed := strings.TrimSpace(*entry.DisplayName)
			if trimmed != "" {
				row.DisplayName = &trimmed
			}
		}
		if err := store.UpsertSourceRating(ctx, row); err != nil {
			return 0, err
		}
	}
	return len(dataset.Sources), nil
}

func loadRatingsSchema() (*jsonschema.Schema, error) {
	ratingsSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("ratings.schema.json", strings.NewReader(ratingsSchemaJSON)); err != nil {
			ratingsSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("ratings.schema.json")
		if err != nil {
			ratingsSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		ratingsSchema = schema
	})

	if ratingsSchemaErr != nil {
		return nil, ratingsSchemaErr
	}
	if ratingsSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return ratingsSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}
