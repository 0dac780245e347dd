package ratelimit

import (
	"strings"
	"time"
)

// ClassName identifies a limit class.
type ClassName string

// Built-in classes.
const (
	ClassAPI  ClassName = "api"
	ClassScan ClassName = "scan"
)

// Class is a counter family: one fixed-window counter per user under Prefix.
type Class struct {
	Name   ClassName
	Prefix string
	Window time.Duration
	Limit  int
	// Overridable classes use the user's custom quota instead of Limit when one is set.
	Overridable bool
}

var (
	// API limits API calls to 60 per minute.
	API = Class{Name: ClassAPI, Prefix: "ratelimit:api", Window: time.Minute, Limit: 60}

	// Scan limits scans to 100 per day unless the user has a custom quota.
	Scan = Class{Name: ClassScan, Prefix: "quota:scans", Window: 24 * time.Hour, Limit: 100, Overridable: true}
)

func (c Class) valid() bool {
	return c.Name != "" && c.Prefix != "" && c.Window > 0 && c.Limit >= 0
}

// LimitKey returns the counter key of a user in the class with prefix.
func LimitKey(prefix, userID string) string {
	return strings.TrimSuffix(prefix, ":") + ":" + userID
}
