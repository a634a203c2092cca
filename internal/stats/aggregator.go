package stats

import "cache-telemetry-service/internal/event"

// Compute folds each source's events into a Statistics record and sums the
// records into a total. Sources keep their input order; a name that appears
// more than once is folded into its first entry. Compute has no side effects
// and never fails: malformed events only produce odd numbers.
func Compute(sources []event.Source) Report {
	report := Report{Sources: make([]SourceStatistics, 0, len(sources))}
	index := make(map[string]int, len(sources))

	for _, src := range sources {
		i, ok := index[src.Name]
		if !ok {
			i = len(report.Sources)
			index[src.Name] = i
			report.Sources = append(report.Sources, SourceStatistics{Name: src.Name})
		}
		st := &report.Sources[i].Statistics
		for _, e := range src.Events {
			fold(st, e)
		}
	}

	for i := range report.Sources {
		st := &report.Sources[i].Statistics
		st.deriveRatio()
		report.Total.add(*st)
	}
	report.Total.deriveRatio()

	return report
}

func fold(st *Statistics, e event.Event) {
	st.Calls++
	st.Time += e.Duration()

	switch op := e.Op.(type) {
	case event.GetItem:
		st.Reads++
		if op.Hit {
			st.Hits++
		} else {
			st.Misses++
		}
	case event.GetItems:
		// Misses are the batch size minus hits, not the recorded miss count.
		n := op.Hits + op.Misses
		st.Reads += n
		st.Hits += op.Hits
		st.Misses += n - op.Hits
	case event.HasItem:
		st.Reads++
		if op.Found {
			st.Hits++
		} else {
			st.Misses++
		}
	case event.Save:
		st.Writes++
	case event.DeleteItem:
		st.Deletes++
	}
}
