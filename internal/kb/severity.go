package kb

import "strings"

// Severity is the display classification of a fault's free-text severity.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

var severityLabels = map[string]Severity{
	"高":      SeverityHigh,
	"high":   SeverityHigh,
	"中":      SeverityMedium,
	"medium": SeverityMedium,
	"低":      SeverityLow,
	"low":    SeverityLow,
}

// Classify maps a severity label to its level. Unrecognized labels, including
// the empty string, are SeverityUnknown.
func Classify(label string) Severity {
	return severityLabels[strings.ToLower(strings.TrimSpace(label))]
}

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return ""
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	*s = Classify(string(text))
	return nil
}
