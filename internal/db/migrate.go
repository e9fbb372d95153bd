package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

// Schema management runs in three steps on startup: raw SQL that gorm
// cannot express (the vantage schema and the pgvector extension),
// AutoMigrate over the models, then the partial indexes the sweep and
// candidate queries depend on.

//go:embed sql/pre_automigrate.sql
var schemaSetupSQL string

//go:embed sql/post_automigrate.sql
var indexSQL string

func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if err := p.execMigration(ctx, "schema setup", schemaSetupSQL); err != nil {
		return err
	}
	if err := p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...); err != nil {
		return fmt.Errorf("gorm auto-migrate models: %w", err)
	}
	return p.execMigration(ctx, "index", indexSQL)
}

func (p *Pool) execMigration(ctx context.Context, label, sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return nil
	}
	if err := p.gdb.WithContext(ctx).Exec(trimmed).Error; err != nil {
		return fmt.Errorf("execute %s SQL: %w", label, err)
	}
	return nil
}
