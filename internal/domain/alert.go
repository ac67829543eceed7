package domain

type AlertLevel string

const (
	AlertUrgent      AlertLevel = "urgent"
	AlertInteresting AlertLevel = "interesting"
	AlertWatch       AlertLevel = "watch"
	AlertArchive     AlertLevel = "archive"
	// AlertExcluded is forced by exclusion keywords regardless of score.
	AlertExcluded AlertLevel = "excluded"
)

// Rank orders tiers for "did the tier rise" comparisons. Excluded ranks
// below archive.
func (a AlertLevel) Rank() int {
	switch a {
	case AlertUrgent:
		return 4
	case AlertInteresting:
		return 3
	case AlertWatch:
		return 2
	case AlertArchive:
		return 1
	default:
		return 0
	}
}
