package preprocess

import (
	"fmt"
	"path/filepath"
)

// Derivative file layout under the pipeline's derivatives root. The review
// server writes the manual annotations and the confirmed bad-channel list;
// the preprocessing runs read them back.
func entryDir(derivRoot, subject, session string) string {
	return filepath.Join(derivRoot, "sub-"+subject, "ses-"+session, "eeg")
}

func prefix(subject, session, task string) string {
	return fmt.Sprintf("sub-%s_ses-%s_task-%s", subject, session, task)
}

// AnnotationsPath is where manually drawn annotations are persisted.
func AnnotationsPath(derivRoot, subject, session, task string) string {
	return filepath.Join(entryDir(derivRoot, subject, session),
		prefix(subject, session, task)+"_desc-manual_annotations.json")
}

// ConfirmedPath is where the operator-confirmed bad-channel list lives.
func ConfirmedPath(derivRoot, subject, session, task string) string {
	return filepath.Join(entryDir(derivRoot, subject, session),
		prefix(subject, session, task)+"_desc-confirmed_badchannels.json")
}

// FindingsPath is where a findings run stores its machine-readable output.
func FindingsPath(derivRoot, subject, session, task string) string {
	return filepath.Join(entryDir(derivRoot, subject, session),
		prefix(subject, session, task)+"_desc-findings.json")
}

// ReportPath is where the textual report of the latest run lands.
func ReportPath(derivRoot, subject, session, task string) string {
	return filepath.Join(entryDir(derivRoot, subject, session),
		prefix(subject, session, task)+"_desc-preproc_report.txt")
}

// CleanedBase is the BrainVision base path (no extension) of the cleaned
// recording written by an apply run.
func CleanedBase(derivRoot, subject, session, task string) string {
	return filepath.Join(entryDir(derivRoot, subject, session),
		prefix(subject, session, task)+"_desc-preproc_eeg")
}
