package queue

// keys centralizes the Redis key layout of one queue. The queue name is wrapped in a
// hash tag so every key of a queue lands in the same cluster slot.
type keys struct {
	base        string
	wait        string
	prioritized string
	pc          string
	delayed     string
	repeat      string
	repeatIDs   string
}

func newKeys(prefix string, name Name) keys {
	base := prefix + ":{" + string(name) + "}:"
	return keys{
		base:        base,
		wait:        base + "wait",
		prioritized: base + "prioritized",
		pc:          base + "pc",
		delayed:     base + "delayed",
		repeat:      base + "repeat",
		repeatIDs:   base + "repeat-ids",
	}
}

// jobPrefix is the prefix of every job hash; scripts append the job id.
func (k keys) jobPrefix() string { return k.base + "job:" }

func (k keys) job(id string) string { return k.jobPrefix() + id }

// repeatPrefix is the prefix of every repeat entry hash.
func (k keys) repeatPrefix() string { return k.base + "repeat:" }

func (k keys) repeatMeta(repeatKey string) string { return k.repeatPrefix() + repeatKey }

// repeatKey is the storage key of a repeating job. It embeds the pattern, so the
// same job id scheduled with another pattern yields another key.
func repeatKey(jobType, jobID, pattern string) string {
	return jobType + ":" + jobID + ":::" + pattern
}

// repeatInstanceID is the id of the job materialized for one fire time.
func repeatInstanceID(jobID string, fireAtMillis int64) string {
	return "repeat:" + jobID + ":" + itoa(fireAtMillis)
}
