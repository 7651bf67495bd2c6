package syncengine

import (
	"github.com/smallbiznis/ordersync/pkg/repository"
)

// TableStats counts what one resolver did to its table. Skipped counts facts left
// unwritten because a dimension key was missing.
type TableStats struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped"`
}

// Record counts one processed row by the outcome of its write.
func (s *TableStats) Record(outcome repository.Outcome) {
	s.Processed++
	s.Count(outcome)
}

// Count tallies a write outcome without touching Processed.
func (s *TableStats) Count(outcome repository.Outcome) {
	switch outcome {
	case repository.Inserted:
		s.Inserted++
	case repository.Updated:
		s.Updated++
	}
}

func (s *TableStats) Add(other TableStats) {
	s.Processed += other.Processed
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Errors += other.Errors
	s.Skipped += other.Skipped
}

// Stats maps warehouse table names to their counters.
type Stats map[string]TableStats

// NewStats returns zeroed counters for every warehouse table.
func NewStats() Stats {
	stats := make(Stats, len(Tables()))
	for _, table := range Tables() {
		stats[table] = TableStats{}
	}
	return stats
}

// Merge adds counters for a table. Only the orchestrator goroutine calls it.
func (s Stats) Merge(table string, delta TableStats) {
	current := s[table]
	current.Add(delta)
	s[table] = current
}

func (s Stats) MergeAll(other Stats) {
	for table, delta := range other {
		s.Merge(table, delta)
	}
}

// Totals sums every table.
func (s Stats) Totals() TableStats {
	var total TableStats
	for _, table := range s {
		total.Add(table)
	}
	return total
}
