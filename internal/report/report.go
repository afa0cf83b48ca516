// Package report summarizes a preprocessing run: bad-channel findings,
// annotation counts, the filters applied, line-noise attenuation, and band
// power, rendered as the textual report stored beside the cleaned data.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/quality"
)

// Report is the derived summary record for one preprocessing run.
type Report struct {
	Subject string
	Session string
	Task    string
	Mode    string
	RunID   string
	When    time.Time

	SampleRate float64
	NChannels  int
	DurationS  float64

	Candidates []quality.BadChannel
	Confirmed  []string

	AnnotationCounts map[string]int
	FiltersApplied   []string

	// LineNoiseBeforeDB/AfterDB are the mean 50 Hz spectral magnitudes in
	// dB across filtered channels, before and after the cascade.
	LineNoiseBeforeDB float64
	LineNoiseAfterDB  float64

	// BandPowers holds the mean relative band power across channels after
	// cleaning, keyed by band name.
	BandPowers map[string]float64
}

// CountAnnotations tallies annotations by label.
func CountAnnotations(anns []eeg.Annotation) map[string]int {
	counts := map[string]int{}
	for _, a := range anns {
		counts[a.Label]++
	}
	return counts
}

// Render produces the textual report.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Preprocessing report: sub-%s ses-%s task-%s\n", r.Subject, r.Session, r.Task)
	fmt.Fprintf(&b, "Run %s (%s mode), %s\n", r.RunID, r.Mode, r.When.Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 60))

	fmt.Fprintf(&b, "Recording: %d channels, %.1f Hz, %.1f s\n\n", r.NChannels, r.SampleRate, r.DurationS)

	fmt.Fprintf(&b, "Bad-channel candidates (%d):\n", len(r.Candidates))
	if len(r.Candidates) == 0 {
		fmt.Fprintln(&b, "  none")
	}
	for _, c := range r.Candidates {
		fmt.Fprintf(&b, "  %-8s %s\n", c.Name, strings.Join(c.Rules, ", "))
	}
	if r.Mode == "apply" {
		fmt.Fprintf(&b, "Confirmed bad channels (%d): %s\n", len(r.Confirmed), orNone(strings.Join(r.Confirmed, ", ")))
	} else {
		fmt.Fprintln(&b, "Candidates are advisory; confirm them before the apply run.")
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Annotations:")
	if len(r.AnnotationCounts) == 0 {
		fmt.Fprintln(&b, "  none")
	}
	for _, label := range sortedKeys(r.AnnotationCounts) {
		fmt.Fprintf(&b, "  %-16s %d\n", label, r.AnnotationCounts[label])
	}
	fmt.Fprintln(&b)

	if len(r.FiltersApplied) > 0 {
		fmt.Fprintln(&b, "Filters applied, in order:")
		for i, f := range r.FiltersApplied {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, f)
		}
		fmt.Fprintf(&b, "Line noise at 50 Hz: %.1f dB before, %.1f dB after (%.1f dB attenuation)\n\n",
			r.LineNoiseBeforeDB, r.LineNoiseAfterDB, r.LineNoiseBeforeDB-r.LineNoiseAfterDB)
	}

	if len(r.BandPowers) > 0 {
		fmt.Fprintln(&b, "Relative band power (cleaned data):")
		for _, band := range []string{"delta", "theta", "alpha", "beta"} {
			if p, ok := r.BandPowers[band]; ok {
				fmt.Fprintf(&b, "  %-6s %.3f\n", band, p)
			}
		}
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
