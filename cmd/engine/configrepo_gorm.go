//go:build gorm

package main

import (
	"context"

	"github.com/sethnicholsaz/herdledger/internal/database"
	"github.com/sethnicholsaz/herdledger/internal/tenantcfg"
)

// newConfigRepo wires the GORM-backed tenantcfg.GORMRepository, opened
// through its own pooled connection (database.NewGormDB) rather than
// sharing the pgx pool the rest of the engine reads/writes through, since
// GORM owns its own connection lifecycle.
func newConfigRepo(ctx context.Context, dbURL string, pool *database.Pool) (tenantcfg.Repository, error) {
	gormDB, err := database.NewGormDB(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	return tenantcfg.NewGORMRepository(gormDB.DB), nil
}
