// Package bids implements the on-disk layout and naming rules of the
// standardized dataset: one entry per (subject, session, task), BrainVision
// data files, TSV/JSON sidecars, and the dataset-level metadata files.
package bids

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSession is the fixed session label used by the study.
const DefaultSession = "01"

var (
	sourcePattern = regexp.MustCompile(`^sub-([A-Za-z0-9]+)_task-([a-z0-9]+(?:-[a-z0-9]+)*)_eeg$`)
	bidsPattern   = regexp.MustCompile(`^sub-([A-Za-z0-9]+)_ses-([A-Za-z0-9]+)_task-([A-Za-z0-9]+)_eeg$`)
)

// TaskToBIDS converts a hyphenated lowercase task label to the PascalCase
// form used in standardized identifiers: each hyphen-separated word is
// capitalized and the words are joined.
func TaskToBIDS(task string) string {
	words := strings.Split(task, "-")
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

// SourceBasename builds the raw-recording base name for a subject and task,
// without extension: sub-P01_task-natural-walk_eeg.
func SourceBasename(subject, task string) string {
	return fmt.Sprintf("sub-%s_task-%s_eeg", subject, task)
}

// Basename builds the standardized base name for an entry, without the
// modality suffix extension: sub-P01_ses-01_task-NaturalWalk_eeg.
func Basename(subject, session, bidsTask string) string {
	return fmt.Sprintf("sub-%s_ses-%s_task-%s_eeg", subject, session, bidsTask)
}

// ConvertSourceName maps a source base name to its standardized counterpart
// under the fixed session label. The mapping must stay bit-exact: existing
// datasets were written under it.
func ConvertSourceName(source string) (string, error) {
	m := sourcePattern.FindStringSubmatch(source)
	if m == nil {
		return "", fmt.Errorf("source name %q does not match sub-<id>_task-<task>_eeg", source)
	}
	return Basename(m[1], DefaultSession, TaskToBIDS(m[2])), nil
}

// ParseBasename splits a standardized base name into its entities.
func ParseBasename(name string) (subject, session, task string, err error) {
	m := bidsPattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", "", fmt.Errorf("name %q is not a standardized EEG base name", name)
	}
	return m[1], m[2], m[3], nil
}
