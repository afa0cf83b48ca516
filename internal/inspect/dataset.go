package inspect

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/JVHannila/MoBI-project/internal/registry"
)

// DatasetReport walks the standardized tree and the registry and renders
// the dataset summary: entry table, event counts by trial type, and sizes.
func DatasetReport(bidsRoot string, reg *registry.Registry) (string, error) {
	entries, err := reg.List()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s\n%s\n\n", bidsRoot, strings.Repeat("=", 60))

	complete, failed := 0, 0
	fmt.Fprintf(&b, "%-8s %-8s %-28s %-9s %9s %7s %9s\n",
		"subject", "session", "task", "status", "rate", "events", "duration")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-8s %-8s %-28s %-9s %9.1f %7d %8.1fs\n",
			"sub-"+e.Subject, "ses-"+e.Session, e.Task, e.Status, e.SampleRate, e.NEvents, e.DurationS)
		if e.Status == registry.StatusComplete {
			complete++
		} else {
			failed++
		}
	}
	fmt.Fprintf(&b, "\n%d entries: %d complete, %d failed\n\n", len(entries), complete, failed)

	counts, err := countEvents(bidsRoot)
	if err != nil {
		return "", err
	}
	if len(counts) > 0 {
		fmt.Fprintln(&b, "Event counts by trial_type:")
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "  %-24s %s\n", t, humanize.Comma(int64(counts[t])))
		}
		fmt.Fprintln(&b)
	}

	size, nFiles, err := treeSize(bidsRoot)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "Total: %s in %d files\n", humanize.Bytes(uint64(size)), nFiles)
	return b.String(), nil
}

// countEvents tallies trial_type occurrences over every events table in
// the tree.
func countEvents(bidsRoot string) (map[string]int, error) {
	counts := map[string]int{}
	err := filepath.WalkDir(bidsRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, "_events.tsv") {
			return nil
		}
		return tallyEventsFile(path, counts)
	})
	if os.IsNotExist(err) {
		return counts, nil
	}
	return counts, err
}

func tallyEventsFile(path string, counts map[string]int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	trialCol := -1
	for line := 0; sc.Scan(); line++ {
		fields := strings.Split(sc.Text(), "\t")
		if line == 0 {
			for i, name := range fields {
				if name == "trial_type" {
					trialCol = i
				}
			}
			continue
		}
		if trialCol >= 0 && trialCol < len(fields) {
			counts[fields[trialCol]]++
		}
	}
	return sc.Err()
}

func treeSize(root string) (int64, int, error) {
	var size int64
	var n int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		n++
		return nil
	})
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	return size, n, err
}
