package relay

import "strings"

// State is the phase a Progress update reports.
type State string

const (
	StateRunning  State = "running"
	StateAborted  State = "aborted"
	StateComplete State = "complete"
)

const barSegments = 10

// Progress is a snapshot of a running replay.
type Progress struct {
	RunID     string
	State     State
	Processed int
	Forwarded int
	Total     int
}

// Percent is processed over total, 100 once the run is complete.
func (p Progress) Percent() float64 {
	if p.State == StateComplete || p.Total <= 0 {
		return 100
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// Bar renders Percent as ten segments.
func (p Progress) Bar() string {
	filled := min(max(int(p.Percent()/10), 0), barSegments)
	return strings.Repeat("▰", filled) + strings.Repeat("▱", barSegments-filled)
}

// ProgressInterval is how many processed IDs separate two running updates.
func ProgressInterval(total int) int {
	return max(1, total/100)
}

func shouldReport(processed, total int) bool {
	return processed%ProgressInterval(total) == 0 || processed == total
}
