package schedule

import (
	"context"
	"slices"
)

// Keyword is an active keyword as read from the system of record.
type Keyword struct {
	ID        string   `db:"id" json:"id" yaml:"id"`
	Frequency string   `db:"frequency" json:"frequency" yaml:"frequency"`
	Engines   []string `db:"engines" json:"engines" yaml:"engines"`
}

// Source returns every active keyword that should carry a schedule.
type Source interface {
	ActiveKeywords(ctx context.Context) ([]Keyword, error)
}

// StaticSource is an in-memory Source.
type StaticSource []Keyword

// ActiveKeywords returns a copy of the slice.
func (s StaticSource) ActiveKeywords(context.Context) ([]Keyword, error) {
	return slices.Clone(s), nil
}
