// Package pg bootstraps the PostgreSQL layer: a pooled pgx/v5 connection with
// startup retries, goose schema migrations served from an embedded filesystem,
// and a health check closure for readiness probes.
//
// Configuration comes from environment variables via caarlos0/env:
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil { ... }
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil { ... }
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil { ... }
package pg
