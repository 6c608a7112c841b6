package lore

// BookStats is a read-only summary of a lorebook. Computing it never scans.
type BookStats struct {
	Total       int              `json:"total"`
	Enabled     int              `json:"enabled"`
	Disabled    int              `json:"disabled"`
	Constant    int              `json:"constant"`
	Regex       int              `json:"regex"`
	ByPosition  map[Position]int `json:"by_position"`
	AvgPriority float64          `json:"avg_priority"`
}

// Stats summarizes a book. A nil book yields a zero summary.
func Stats(book *Book) BookStats {
	s := BookStats{ByPosition: make(map[Position]int)}
	if book == nil {
		return s
	}

	prioritySum := 0
	for i := range book.Entries {
		e := &book.Entries[i]
		s.Total++
		if e.Enabled {
			s.Enabled++
		} else {
			s.Disabled++
		}
		if e.Constant {
			s.Constant++
		}
		if e.UseRegex {
			s.Regex++
		}
		s.ByPosition[e.position()]++
		prioritySum += e.Priority
	}
	if s.Total > 0 {
		s.AvgPriority = float64(prioritySum) / float64(s.Total)
	}
	return s
}
