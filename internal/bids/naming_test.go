package bids

import "testing"

func TestTaskToBIDS(t *testing.T) {
	tests := []struct {
		task string
		want string
	}{
		{"natural-walk", "NaturalWalk"},
		{"sitting-eyes-closed", "SittingEyesClosed"},
		{"sitting-eyes-closed-before", "SittingEyesClosedBefore"},
		{"treadmill-walk-fast-1", "TreadmillWalkFast1"},
		{"walk", "Walk"},
	}
	for _, tt := range tests {
		if got := TaskToBIDS(tt.task); got != tt.want {
			t.Errorf("TaskToBIDS(%q) = %q, want %q", tt.task, got, tt.want)
		}
	}
}

// The naming convention must stay bit-exact; existing datasets depend on it.
func TestConvertSourceNameRoundTrip(t *testing.T) {
	got, err := ConvertSourceName("sub-P01_task-natural-walk_eeg")
	if err != nil {
		t.Fatal(err)
	}
	const want = "sub-P01_ses-01_task-NaturalWalk_eeg"
	if got != want {
		t.Fatalf("ConvertSourceName = %q, want %q", got, want)
	}

	subject, session, task, err := ParseBasename(got)
	if err != nil {
		t.Fatal(err)
	}
	if subject != "P01" || session != "01" || task != "NaturalWalk" {
		t.Errorf("ParseBasename = (%s, %s, %s)", subject, session, task)
	}
}

func TestConvertSourceNameRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"sub-P01_task-Natural-Walk_eeg", // uppercase in source task
		"sub-P01_natural-walk_eeg",
		"task-natural-walk_eeg",
		"sub-P01_task-natural-walk",
	} {
		if _, err := ConvertSourceName(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSourceBasename(t *testing.T) {
	if got := SourceBasename("P02", "treadmill-walk-fast"); got != "sub-P02_task-treadmill-walk-fast_eeg" {
		t.Errorf("SourceBasename = %q", got)
	}
}
