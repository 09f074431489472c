package pipeline

import "sync"

// escalator counts non-fatal errors by class and reports whether a given
// class has now crossed the configured threshold, implementing spec §7's
// "a repeated error class exceeding a configured threshold escalates to
// orchestrator-level fatal shutdown".
type escalator struct {
	threshold int
	mu        sync.Mutex
	counts    map[string]int
}

func newEscalator(threshold int) *escalator {
	return &escalator{threshold: threshold, counts: map[string]int{}}
}

// record increments kind's count and reports whether it just crossed the
// threshold (false forever if threshold <= 0, disabling escalation).
func (e *escalator) record(kind string) bool {
	if e.threshold <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[kind]++
	return e.counts[kind] == e.threshold+1
}
