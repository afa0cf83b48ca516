package eeg

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Annotation labels for artifact categories. The BAD_ prefix marks spans
// that downstream analysis should treat as unusable.
const (
	LabelMovement = "BAD_movement"
	LabelBlink    = "BAD_blink"
	LabelMuscle   = "BAD_muscle"
	LabelOther    = "BAD_other"
)

// Annotation is a labeled time interval on the recording's timeline.
// Onset and Duration are in seconds relative to the recording start.
type Annotation struct {
	ID       string  `json:"id,omitempty"`
	Onset    float64 `json:"onset"`
	Duration float64 `json:"duration"`
	Label    string  `json:"label"`
	Source   string  `json:"source,omitempty"` // "manual" or "detector"
}

// End returns the interval end in seconds.
func (a Annotation) End() float64 { return a.Onset + a.Duration }

// IsBad reports whether the annotation marks an artifact span.
func (a Annotation) IsBad() bool { return strings.HasPrefix(a.Label, "BAD") }

// SortAnnotations orders annotations by onset, keeping the given order for
// equal onsets. Overlapping intervals are left alone; interpreting overlap
// is the consumer's job.
func SortAnnotations(anns []Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		return anns[i].Onset < anns[j].Onset
	})
}

// MergeAnnotations combines annotation lists into one ordered overlay.
/// Nothing is coalesced or deduplicated: every interval given is preserved.
func MergeAnnotations(lists ...[]Annotation) []Annotation {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	merged := make([]Annotation, 0, total)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	SortAnnotations(merged)
	return merged
}

// Event is an instantaneous experiment marker. Onset is in seconds relative
// to the recording start, kept at full precision: event times are never
// resampled onto the EEG sample grid.
type Event struct {
	Onset       float64 `json:"onset"`
	Duration    float64 `json:"duration"`
	Code        int     `json:"code"`
	Description string  `json:"description"`
}

// ecodePattern extracts the numeric event code the presentation software
// embeds in its marker strings.
var ecodePattern = regexp.MustCompile(`<ecode>(\d+)</ecode>`)

// DescribeMarker maps a raw marker string to an event description. Markers
// carrying an <ecode>N</ecode> tag become Event_N with the parsed code;
// anything else passes through verbatim with code -1.
func DescribeMarker(raw string) (string, int) {
	if m := ecodePattern.FindStringSubmatch(raw); m != nil {
		code, err := strconv.Atoi(m[1])
		if err == nil {
			return "Event_" + m[1], code
		}
	}
	return raw, -1
}
