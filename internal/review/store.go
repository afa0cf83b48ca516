package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/preprocess"
)

// annotationStore persists the operator's manual annotations and confirmed
// bad channels as the JSON files the preprocessing runs read.
type annotationStore struct {
	derivRoot string
	mu        sync.Mutex
}

func (st *annotationStore) load(subject, session, task string) ([]eeg.Annotation, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.loadLocked(subject, session, task)
}

func (st *annotationStore) loadLocked(subject, session, task string) ([]eeg.Annotation, error) {
	path := preprocess.AnnotationsPath(st.derivRoot, subject, session, task)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []eeg.Annotation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading annotations: %w", err)
	}
	var anns []eeg.Annotation
	if err := json.Unmarshal(data, &anns); err != nil {
		return nil, fmt.Errorf("parsing annotations %s: %w", path, err)
	}
	return anns, nil
}

func (st *annotationStore) add(subject, session, task string, ann eeg.Annotation) (eeg.Annotation, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	anns, err := st.loadLocked(subject, session, task)
	if err != nil {
		return eeg.Annotation{}, err
	}
	ann.ID = uuid.NewString()
	anns = append(anns, ann)
	eeg.SortAnnotations(anns)

	if err := st.saveLocked(subject, session, task, anns); err != nil {
		return eeg.Annotation{}, err
	}
	return ann, nil
}

func (st *annotationStore) remove(subject, session, task, id string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	anns, err := st.loadLocked(subject, session, task)
	if err != nil {
		return false, err
	}
	kept := anns[:0]
	removed := false
	for _, a := range anns {
		if a.ID == id {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	if !removed {
		return false, nil
	}
	return true, st.saveLocked(subject, session, task, kept)
}

func (st *annotationStore) saveLocked(subject, session, task string, anns []eeg.Annotation) error {
	path := preprocess.AnnotationsPath(st.derivRoot, subject, session, task)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating annotations dir: %w", err)
	}
	data, err := json.MarshalIndent(anns, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding annotations: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing annotations: %w", err)
	}
	return nil
}

func (st *annotationStore) confirm(subject, session, task string, channels []string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	path := preprocess.ConfirmedPath(st.derivRoot, subject, session, task)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating derivatives dir: %w", err)
	}
	if channels == nil {
		channels = []string{}
	}
	data, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding confirmed channels: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing confirmed channels: %w", err)
	}
	return nil
}
