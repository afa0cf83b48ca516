// Package convert drives the batch XDF-to-BIDS conversion: for every
// subject and task of the study manifest it resolves the raw recording,
// prepares the EEG, and writes one standardized entry. Recordings are
// independent; a failure aborts that recording only.
package convert

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JVHannila/MoBI-project/internal/bids"
	"github.com/JVHannila/MoBI-project/internal/config"
	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/montage"
	"github.com/JVHannila/MoBI-project/internal/registry"
	"github.com/JVHannila/MoBI-project/internal/study"
	"github.com/JVHannila/MoBI-project/internal/xdf"
)

// ErrNoMarkers is returned when a raw recording has an EEG stream but no
// marker stream; without markers there is no task span to crop to.
var ErrNoMarkers = errors.New("recording has no marker stream")

// Converter holds the fixed collaborators of a batch run.
type Converter struct {
	cfg      *config.Config
	manifest *study.Manifest
	reg      *registry.Registry
	log      *zap.Logger

	// Overwrite allows replacing entries that already exist on disk.
	Overwrite bool
}

// New builds a Converter.
func New(cfg *config.Config, manifest *study.Manifest, reg *registry.Registry, log *zap.Logger) *Converter {
	return &Converter{cfg: cfg, manifest: manifest, reg: reg, log: log}
}

// Result is the outcome for one subject/task pair.
type Result struct {
	Subject string
	Task    string
	Source  string
	Err     error
	Skipped bool // excluded by the manifest or file not found
}

// Summary aggregates a batch run.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
}

// Run converts every non-excluded subject/task pair of the manifest,
// sequentially. The context is checked between recordings; conversion of a
// single recording is not interruptible.
func (c *Converter) Run(ctx context.Context) (*Summary, error) {
	s := &Summary{}
	for _, subject := range c.manifest.Subjects {
		for _, task := range c.manifest.Tasks {
			if err := ctx.Err(); err != nil {
				return s, err
			}
			res := c.convertPair(subject, task)
			s.Results = append(s.Results, res)
			switch {
			case res.Skipped:
				s.Skipped++
			case res.Err != nil:
				s.Failed++
			default:
				s.Succeeded++
			}
		}
	}
	return s, nil
}

func (c *Converter) convertPair(subject, task string) Result {
	res := Result{Subject: subject, Task: task}
	log := c.log.With(zap.String("subject", subject), zap.String("task", task))

	if c.manifest.Excluded(subject, task) {
		log.Info("skipping excluded recording")
		res.Skipped = true
		return res
	}

	path, actualTask, found := c.manifest.ResolveSource(c.cfg.SourceDir, subject, task)
	if !found {
		log.Warn("raw recording not found", zap.String("dir", c.cfg.SourceDir))
		res.Skipped = true
		return res
	}
	res.Source = path

	bidsTask := bids.TaskToBIDS(actualTask)
	entry, err := c.prepare(path, subject, bidsTask)
	if err == nil {
		err = bids.WriteEntry(c.cfg.BIDSRoot, entry)
	}

	regEntry := &registry.Entry{
		Subject:    subject,
		Session:    c.manifest.Session,
		Task:       bidsTask,
		SourceFile: path,
	}
	if err != nil {
		log.Error("conversion failed", zap.Error(err))
		res.Err = err
		regEntry.Status = registry.StatusFailed
		regEntry.Error = err.Error()
	} else {
		log.Info("converted",
			zap.Int("channels", entry.Recording.NChannels()),
			zap.Int("events", len(entry.Recording.Events)),
			zap.Float64("duration_s", entry.Recording.Duration()))
		regEntry.Status = registry.StatusComplete
		regEntry.SampleRate = entry.Recording.SampleRate
		regEntry.NChannels = entry.Recording.NChannels()
		regEntry.NEvents = len(entry.Recording.Events)
		regEntry.DurationS = entry.Recording.Duration()
	}
	// The registry row lands only after the write's fate is known; a
	// recording is never registered complete without its files in place.
	if regErr := c.reg.Upsert(regEntry); regErr != nil {
		log.Error("registry update failed", zap.Error(regErr))
		if res.Err == nil {
			res.Err = regErr
		}
	}
	return res
}

// prepare turns one raw XDF file into a ready-to-write entry.
func (c *Converter) prepare(path, subject, bidsTask string) (*bids.Entry, error) {
	file, err := xdf.ReadFile(path)
	if err != nil {
		return nil, err
	}

	eegStream, err := file.EEGStream()
	if err != nil {
		return nil, err
	}
	markers, err := file.MarkerStream()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMarkers, path)
	}
	if len(markers.Timestamps) == 0 {
		return nil, fmt.Errorf("%w: marker stream is empty", ErrNoMarkers)
	}

	rate := eegStream.EffectiveRate()
	if diff := rate - eeg.DefaultSampleRate; diff > 1 || diff < -1 {
		c.log.Warn("sampling rate departs from the study nominal",
			zap.Float64("effective", rate), zap.Float64("nominal", eeg.DefaultSampleRate))
	}

	// Crop the EEG to the span of the marker stream.
	tStart := markers.Timestamps[0]
	tEnd := markers.Timestamps[len(markers.Timestamps)-1]
	startIdx := searchLeft(eegStream.Timestamps, tStart)
	endIdx := searchRight(eegStream.Timestamps, tEnd)
	if startIdx >= endIdx {
		return nil, fmt.Errorf("marker span [%g, %g] does not overlap the EEG samples", tStart, tEnd)
	}

	labels := eegStream.ChannelLabels()
	data := make([][]float64, len(eegStream.Series))
	for i, row := range eegStream.Series {
		seg := make([]float64, endIdx-startIdx)
		copy(seg, row[startIdx:endIdx])
		data[i] = seg
	}
	rec, err := eeg.New(labels, data, rate)
	if err != nil {
		return nil, err
	}
	rec.StartTime = eegStream.Timestamps[startIdx]

	eegRec, motionRec := rec.SplitMotion()
	if eegRec == nil {
		return nil, fmt.Errorf("stream %q carries only motion channels", eegStream.Name)
	}
	if scaled := eegRec.ScaleToVolts(); scaled {
		c.log.Debug("scaled samples from microvolts to volts")
	}

	// Marker timestamps become event onsets relative to the cropped start,
	// at full precision. Markers outside the cropped span are dropped.
	maxTime := float64(eegRec.NSamples()-1) / rate
	for i, ts := range markers.Timestamps {
		onset := ts - rec.StartTime
		if onset < 0 || onset > maxTime {
			continue
		}
		raw := ""
		if i < len(markers.Values) {
			raw = markers.Values[i]
		}
		desc, code := eeg.DescribeMarker(raw)
		eegRec.Events = append(eegRec.Events, eeg.Event{Onset: onset, Code: code, Description: desc})
	}

	electrodes, err := c.buildElectrodes(eegStream, eegRec)
	if err != nil {
		return nil, err
	}

	return &bids.Entry{
		Subject:    subject,
		Session:    c.manifest.Session,
		Task:       bidsTask,
		Recording:  eegRec,
		Motion:     motionRec,
		Electrodes: electrodes,
		LineFreq:   50,
		Overwrite:  c.Overwrite,
		Anonymize:  c.cfg.Anonymize,
	}, nil
}

// buildElectrodes resolves the montage for a recording: embedded XDF
// locations win, then the configured layout file, then the built-in cap.
func (c *Converter) buildElectrodes(stream *xdf.Stream, rec *eeg.Recording) ([]montage.Electrode, error) {
	if m := montage.FromXDF(stream, rec.ChannelNames, c.log); m != nil {
		c.log.Debug("montage from XDF metadata", zap.Int("electrodes", len(m.Positions)))
		return m.Apply(rec.ChannelNames)
	}
	if c.cfg.MontageFile != "" {
		m, err := montage.Load(c.cfg.MontageFile)
		if err != nil {
			return nil, err
		}
		return m.Apply(rec.ChannelNames)
	}
	return montage.PROX64().Apply(rec.ChannelNames)
}

func searchLeft(x []float64, v float64) int {
	return sort.SearchFloat64s(x, v)
}

func searchRight(x []float64, v float64) int {
	return sort.Search(len(x), func(i int) bool { return x[i] > v })
}
