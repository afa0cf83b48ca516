package bids

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// LoadMotion reads an entry's IMU recording back, when one was written.
// Returns (nil, nil) when the entry has no motion file. The sampling rate
// comes from the motion sidecar.
func LoadMotion(root, subject, session, task string) (*eeg.Recording, error) {
	base := filepath.Join(MotionDir(root, subject, session),
		fmt.Sprintf("sub-%s_ses-%s_task-%s_tracksys-imu_motion", subject, session, task))

	f, err := os.Open(base + ".tsv")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening motion table: %w", err)
	}
	defer f.Close()

	var sidecar struct {
		SamplingFrequency float64 `json:"SamplingFrequency"`
	}
	raw, err := os.ReadFile(base + ".json")
	if err != nil {
		return nil, fmt.Errorf("reading motion sidecar: %w", err)
	}
	if err := json.Unmarshal(raw, &sidecar); err != nil {
		return nil, fmt.Errorf("parsing motion sidecar: %w", err)
	}
	if sidecar.SamplingFrequency <= 0 {
		return nil, fmt.Errorf("motion sidecar %s declares no sampling frequency", base+".json")
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	if !sc.Scan() {
		return nil, fmt.Errorf("motion table %s is empty", base+".tsv")
	}
	names := strings.Split(sc.Text(), "\t")
	data := make([][]float64, len(names))

	lineNo := 1
	for sc.Scan() {
		lineNo++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(names) {
			return nil, fmt.Errorf("motion table %s line %d: %d columns, expected %d",
				base+".tsv", lineNo, len(fields), len(names))
		}
		for c, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("motion table %s line %d: %w", base+".tsv", lineNo, err)
			}
			data[c] = append(data[c], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading motion table: %w", err)
	}

	return eeg.New(names, data, sidecar.SamplingFrequency)
}
