// Package preprocess implements the second pipeline stage: load a
// standardized entry, surface bad-channel candidates and artifact spans,
// merge manual annotations, and — once the operator has confirmed the
// exclusions — filter the good channels and write the cleaned recording
// with its report. The default findings mode never touches data.
package preprocess

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JVHannila/MoBI-project/internal/bids"
	"github.com/JVHannila/MoBI-project/internal/brainvision"
	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/filter"
	"github.com/JVHannila/MoBI-project/internal/quality"
	"github.com/JVHannila/MoBI-project/internal/registry"
	"github.com/JVHannila/MoBI-project/internal/report"
)

// Modes of a preprocessing run.
const (
	ModeFindings = "findings"
	ModeApply    = "apply"
)

// ErrNotConfirmed is returned by an apply run when no confirmed bad-channel
// decision exists yet. Heuristic candidates alone never authorize removal.
var ErrNotConfirmed = errors.New("no confirmed bad-channel list for entry")

// Pipeline runs preprocessing for single entries.
type Pipeline struct {
	BIDSRoot  string
	DerivRoot string
	Registry  *registry.Registry
	Log       *zap.Logger
}

// Findings is the machine-readable output of a findings run.
type Findings struct {
	Subject     string               `json:"subject"`
	Session     string               `json:"session"`
	Task        string               `json:"task"`
	RunID       string               `json:"run_id"`
	Candidates  []quality.BadChannel `json:"bad_channel_candidates"`
	Annotations []eeg.Annotation     `json:"annotations"`
}

// Run executes one preprocessing pass over an entry. Findings mode detects
// and reports; apply mode additionally requires the confirmed bad-channel
// list, filters the good channels, and writes the cleaned recording.
func (p *Pipeline) Run(subject, session, task, mode string) (*report.Report, error) {
	rec, err := bids.LoadEntry(p.BIDSRoot, subject, session, task)
	if err != nil {
		return nil, err
	}
	log := p.Log.With(zap.String("subject", subject), zap.String("task", task))

	candidates := quality.DetectBadChannels(rec)
	log.Info("bad-channel heuristics done", zap.Int("candidates", len(candidates)))

	motion, err := bids.LoadMotion(p.BIDSRoot, subject, session, task)
	if err != nil {
		log.Warn("could not load motion recording", zap.Error(err))
	}
	var detected []eeg.Annotation
	if motion != nil {
		detected = quality.DetectMovementFromGyro(motion)
	}
	if detected == nil {
		detected = quality.DetectMovement(rec)
	}

	manual, err := p.loadManualAnnotations(subject, session, task)
	if err != nil {
		return nil, err
	}
	merged := eeg.MergeAnnotations(rec.Annotations, detected, manual)
	rec.Annotations = merged
	log.Info("annotations merged",
		zap.Int("detected", len(detected)), zap.Int("manual", len(manual)), zap.Int("total", len(merged)))

	rep := &report.Report{
		Subject: subject, Session: session, Task: task,
		Mode: mode, RunID: uuid.NewString(), When: time.Now(),
		SampleRate: rec.SampleRate, NChannels: rec.NChannels(), DurationS: rec.Duration(),
		Candidates:       candidates,
		AnnotationCounts: report.CountAnnotations(merged),
	}

	if mode == ModeApply {
		if err := p.apply(rec, rep, subject, session, task); err != nil {
			return nil, err
		}
	}

	if err := p.persist(rec, rep, subject, session, task, candidates, merged); err != nil {
		return nil, err
	}
	return rep, nil
}

func (p *Pipeline) apply(rec *eeg.Recording, rep *report.Report, subject, session, task string) error {
	confirmed, err := p.loadConfirmed(subject, session, task)
	if err != nil {
		return err
	}
	rep.Confirmed = confirmed

	skip := make(map[string]bool, len(confirmed))
	for _, name := range confirmed {
		skip[name] = true
	}

	cascade, err := filter.StudyCascade(rec.SampleRate)
	if err != nil {
		return err
	}
	rep.LineNoiseBeforeDB = report.LineNoiseDB(rec, filter.LineFreq, skip)
	cascade.Apply(rec, skip)
	rep.LineNoiseAfterDB = report.LineNoiseDB(rec, filter.LineFreq, skip)
	rep.FiltersApplied = cascade.Summaries()
	rep.BandPowers = report.BandPowers(rec, skip)

	base := CleanedBase(p.DerivRoot, subject, session, task)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("creating derivatives dir: %w", err)
	}

	bv := &brainvision.Recording{
		ChannelNames: rec.ChannelNames,
		SampleRate:   rec.SampleRate,
		Data:         make([][]float64, rec.NChannels()),
	}
	for i, row := range rec.Data {
		uv := make([]float64, len(row))
		for j, v := range row {
			uv[j] = v * 1e6
		}
		bv.Data[i] = uv
	}
	for _, ann := range rec.Annotations {
		if !ann.IsBad() {
			continue
		}
		length := int(ann.Duration * rec.SampleRate)
		if length < 1 {
			length = 1
		}
		bv.Markers = append(bv.Markers, brainvision.Marker{
			Type:        brainvision.MarkerBadInterval,
			Description: ann.Label,
			Position:    rec.SampleAt(ann.Onset) + 1,
			Length:      length,
		})
	}
	if err := brainvision.Write(base, bv); err != nil {
		return fmt.Errorf("writing cleaned recording: %w", err)
	}
	return nil
}

func (p *Pipeline) persist(rec *eeg.Recording, rep *report.Report, subject, session, task string,
	candidates []quality.BadChannel, merged []eeg.Annotation) error {

	dir := entryDir(p.DerivRoot, subject, session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating derivatives dir: %w", err)
	}

	findings := Findings{
		Subject: subject, Session: session, Task: task, RunID: rep.RunID,
		Candidates: candidates, Annotations: merged,
	}
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding findings: %w", err)
	}
	if err := os.WriteFile(FindingsPath(p.DerivRoot, subject, session, task), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing findings: %w", err)
	}

	reportPath := ReportPath(p.DerivRoot, subject, session, task)
	if err := os.WriteFile(reportPath, []byte(rep.Render()), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if p.Registry != nil {
		entry, err := p.Registry.Get(subject, session, task)
		if err != nil {
			p.Log.Warn("entry not in registry, run not recorded", zap.Error(err))
			return nil
		}
		return p.Registry.RecordRun(&registry.Run{
			ID:          rep.RunID,
			EntryID:     entry.ID,
			Mode:        rep.Mode,
			BadChannels: len(candidates),
			Annotations: len(merged),
			ReportPath:  reportPath,
		})
	}
	return nil
}

func (p *Pipeline) loadManualAnnotations(subject, session, task string) ([]eeg.Annotation, error) {
	path := AnnotationsPath(p.DerivRoot, subject, session, task)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manual annotations: %w", err)
	}
	var anns []eeg.Annotation
	if err := json.Unmarshal(data, &anns); err != nil {
		return nil, fmt.Errorf("parsing manual annotations %s: %w", path, err)
	}
	for i := range anns {
		anns[i].Source = "manual"
	}
	return anns, nil
}

func (p *Pipeline) loadConfirmed(subject, session, task string) ([]string, error) {
	path := ConfirmedPath(p.DerivRoot, subject, session, task)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: sub-%s ses-%s task-%s", ErrNotConfirmed, subject, session, task)
	}
	if err != nil {
		return nil, fmt.Errorf("reading confirmed bad channels: %w", err)
	}
	var confirmed []string
	if err := json.Unmarshal(data, &confirmed); err != nil {
		return nil, fmt.Errorf("parsing confirmed bad channels %s: %w", path, err)
	}
	return confirmed, nil
}
