package queue

// Name identifies one of the durable queues.
type Name string

// Queue names.
const (
	Scrapers      Name = "scrapers"
	Analysis      Name = "analysis"
	Notifications Name = "notifications"
	Scheduled     Name = "scheduled"
)

// Names returns every known queue.
func Names() []Name {
	return []Name{Scrapers, Analysis, Notifications, Scheduled}
}

// Valid reports whether n is one of the known queues.
func (n Name) Valid() bool {
	switch n {
	case Scrapers, Analysis, Notifications, Scheduled:
		return true
	}
	return false
}

func (n Name) String() string { return string(n) }
