//go:build !gorm

package main

import (
	"context"

	"github.com/sethnicholsaz/herdledger/internal/database"
	"github.com/sethnicholsaz/herdledger/internal/tenantcfg"
)

// newConfigRepo wires the pgx-native tenantcfg.PostgresRepository, the
// default build. Swap in with -tags gorm for the GORM-backed alternate.
func newConfigRepo(ctx context.Context, dbURL string, pool *database.Pool) (tenantcfg.Repository, error) {
	return tenantcfg.NewPostgresRepository(pool.Pool), nil
}
