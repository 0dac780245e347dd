// Package ratelimit enforces per-user fixed-window limits and custom quotas.
//
// Every user gets one counter per [Class], stored in Redis at
// [LimitKey](class.Prefix, userID). The first increment of a window sets the
// window's expiry in the same Lua script that increments, so concurrent first
// requests cannot each restart the window. The window resets when the key expires.
//
// Built-in classes:
//
//   - [API]: 60 requests per minute under "ratelimit:api"
//   - [Scan]: 100 scans per day under "quota:scans", replaced by the user's
//     custom quota when one is set
//
// Usage:
//
//	limiter, err := ratelimit.New(client, ratelimit.WithLogger(log))
//
//	res, err := limiter.IncrementAndCheck(ctx, userID, ratelimit.ClassScan)
//	if err != nil {
//	    return err // store unavailable: the caller picks fail-open or fail-closed
//	}
//	if !res.Allowed {
//	    // reject, reporting res.Remaining and res.ResetAt
//	}
//
// Exceeding a limit is a normal result, never an error. Custom quotas are stored
// under "quota:custom:<userID>" without expiry until [Limiter.ResetQuota].
package ratelimit
