// Package inspect implements the diagnostic views: a per-file XDF stream
// table for debugging raw recordings, and a dataset-level report over the
// standardized tree and the registry.
package inspect

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/JVHannila/MoBI-project/internal/xdf"
)

// XDFReport summarizes one raw recording for debugging: the stream table,
// which streams were identified as EEG and markers, and per-stream spans.
func XDFReport(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	file, err := xdf.ReadFile(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
	fmt.Fprintf(&b, "XDF version: %s, %d streams\n\n", orUnknown(file.Version), len(file.Streams))

	eegStream, eegErr := file.EEGStream()
	markerStream, markerErr := file.MarkerStream()

	fmt.Fprintf(&b, "%-3s %-24s %-12s %8s %10s %10s %12s %12s\n",
		"#", "name", "type", "channels", "rate", "samples", "first_ts", "last_ts")
	for i, s := range file.Streams {
		role := ""
		if s == eegStream {
			role = "  <- EEG"
		} else if s == markerStream {
			role = "  <- markers"
		}
		first, last := "-", "-"
		if n := len(s.Timestamps); n > 0 {
			first = fmt.Sprintf("%.3f", s.Timestamps[0])
			last = fmt.Sprintf("%.3f", s.Timestamps[n-1])
		}
		fmt.Fprintf(&b, "%-3d %-24s %-12s %8d %10.1f %10s %12s %12s%s\n",
			i+1, truncate(s.Name, 24), truncate(s.Type, 12), s.ChannelCount,
			s.EffectiveRate(), humanize.Comma(int64(s.NSamples())), first, last, role)
	}
	fmt.Fprintln(&b)

	if eegErr != nil {
		fmt.Fprintln(&b, "WARNING: no stream identifies as EEG; conversion would fail.")
	}
	if markerErr != nil {
		fmt.Fprintln(&b, "WARNING: no stream identifies as markers; conversion would fail.")
	}
	if eegErr == nil && markerErr == nil {
		fmt.Fprintln(&b, "EEG and marker streams identified; file looks convertible.")
	}
	return b.String(), nil
}

// VerifyStreams checks that a raw recording carries both required streams.
func VerifyStreams(file *xdf.File) error {
	var errs []error
	if _, err := file.EEGStream(); err != nil {
		errs = append(errs, err)
	}
	if _, err := file.MarkerStream(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
