// Package db connects to the PostgreSQL database holding tracked keywords.
//
// The scheduler only reads from it (see schedule.PostgresSource), once at startup
// and on demand from the CLI. A deployment without DATABASE_URL runs without a
// pool and reads keywords from a file instead.
//
//	pool, err := db.Connect(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	checks["postgres"] = db.Healthcheck(pool)
package db
