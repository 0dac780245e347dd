// Package health runs dependency checks and serves them on the liveness and
// readiness endpoints.
//
//	checks := health.Checks{
//	    "redis":    conn.Healthcheck(),
//	    "database": db.Healthcheck(pool),
//	}
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(checks,
//	    health.WithCritical("redis"),
//	    health.WithLogger(log),
//	))
//
// Checks named by [WithCritical] decide readiness: when one fails the endpoint
// answers 503 "UNAVAILABLE redis". Any other failing check leaves it at 200 with
// "DEGRADED database". Clients asking for JSON, with ?format=json or an
// Accept: application/json header, get the full outcome:
//
//	{"status":"unhealthy","failing":["redis"],"checks":{"redis":{"status":"unhealthy","error":"dial tcp: connection refused","latency":"1.2ms"}}}
//
// [Run] executes the same checks outside HTTP, for the CLI.
package health
