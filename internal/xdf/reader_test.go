package xdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"
)

// chunkWriter builds synthetic XDF byte streams for tests.
type chunkWriter struct {
	buf bytes.Buffer
}

func newChunkWriter() *chunkWriter {
	w := &chunkWriter{}
	w.buf.WriteString("XDF:")
	return w
}

func (w *chunkWriter) chunk(tag uint16, content []byte) {
	// 4-byte varlen, which the reader must accept for any chunk size.
	w.buf.WriteByte(4)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(content)+2))
	w.buf.Write(lenBuf[:])
	var tagBuf [2]byte
	binary.LittleEndian.PutUint16(tagBuf[:], tag)
	w.buf.Write(tagBuf[:])
	w.buf.Write(content)
}

func (w *chunkWriter) fileHeader(version string) {
	w.chunk(tagFileHeader, []byte(fmt.Sprintf("<?xml version=\"1.0\"?><info><version>%s</version></info>", version)))
}

func (w *chunkWriter) streamHeader(id uint32, name, typ string, channels int, rate float64, format string) {
	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, id)
	fmt.Fprintf(&content, "<?xml version=\"1.0\"?><info><name>%s</name><type>%s</type>", name, typ)
	fmt.Fprintf(&content, "<channel_count>%d</channel_count><nominal_srate>%g</nominal_srate>", channels, rate)
	fmt.Fprintf(&content, "<channel_format>%s</channel_format></info>", format)
	w.chunk(tagStreamHeader, content.Bytes())
}

func (w *chunkWriter) float32Samples(id uint32, timestamps []float64, samples [][]float32) {
	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, id)
	content.WriteByte(1)
	content.WriteByte(byte(len(samples)))
	for i, sample := range samples {
		if math.IsNaN(timestamps[i]) {
			content.WriteByte(0)
		} else {
			content.WriteByte(8)
			binary.Write(&content, binary.LittleEndian, timestamps[i])
		}
		for _, v := range sample {
			binary.Write(&content, binary.LittleEndian, v)
		}
	}
	w.chunk(tagSamples, content.Bytes())
}

func (w *chunkWriter) stringSamples(id uint32, timestamps []float64, values []string) {
	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, id)
	content.WriteByte(1)
	content.WriteByte(byte(len(values)))
	for i, v := range values {
		content.WriteByte(8)
		binary.Write(&content, binary.LittleEndian, timestamps[i])
		content.WriteByte(1)
		content.WriteByte(byte(len(v)))
		content.WriteString(v)
	}
	w.chunk(tagSamples, content.Bytes())
}

func (w *chunkWriter) reader() *bytes.Reader {
	return bytes.NewReader(w.buf.Bytes())
}

func TestReadRejectsNonXDF(t *testing.T) {
	_, err := Read(strings.NewReader("RIFF....not an xdf file"))
	if err != ErrNotXDF {
		t.Fatalf("expected ErrNotXDF, got %v", err)
	}
}

func TestReadParsesStreamsAndSamples(t *testing.T) {
	w := newChunkWriter()
	w.fileHeader("1.0")
	w.streamHeader(1, "ProX Headset", "EEG", 2, 250, "float32")
	w.float32Samples(1, []float64{10.0, 10.004}, [][]float32{{1.5, -2.5}, {3.0, 4.0}})

	file, err := Read(w.reader())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if file.Version != "1.0" {
		t.Errorf("version = %q, want 1.0", file.Version)
	}
	if len(file.Streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(file.Streams))
	}

	s := file.Streams[0]
	if s.NSamples() != 2 {
		t.Fatalf("got %d samples, want 2", s.NSamples())
	}
	// Series is channel-major.
	if s.Series[0][0] != 1.5 || s.Series[1][0] != -2.5 {
		t.Errorf("first sample = (%g, %g), want (1.5, -2.5)", s.Series[0][0], s.Series[1][0])
	}
	if s.Timestamps[0] != 10.0 {
		t.Errorf("first timestamp = %g, want 10.0", s.Timestamps[0])
	}
}

func TestReadDeducesOmittedTimestamps(t *testing.T) {
	w := newChunkWriter()
	w.streamHeader(1, "eeg", "EEG", 1, 250, "float32")
	nan := math.NaN()
	w.float32Samples(1, []float64{5.0, nan, nan}, [][]float32{{1}, {2}, {3}})

	file, err := Read(w.reader())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	ts := file.Streams[0].Timestamps
	want := []float64{5.0, 5.004, 5.008}
	for i := range want {
		if math.Abs(ts[i]-want[i]) > 1e-9 {
			t.Errorf("timestamp[%d] = %g, want %g", i, ts[i], want[i])
		}
	}
}

func TestEEGStreamSelectedByMetadataNotPosition(t *testing.T) {
	// The EEG stream must be found by tag inspection wherever it sits in
	// the stream list.
	for _, eegPos := range []int{0, 1, 2} {
		w := newChunkWriter()
		id := uint32(1)
		for pos := 0; pos < 3; pos++ {
			switch {
			case pos == eegPos:
				w.streamHeader(id, "BrainAmp", "EEG", 1, 250, "float32")
			case pos == (eegPos+1)%3:
				w.streamHeader(id, "Presentation", "Markers", 1, 0, "string")
			default:
				w.streamHeader(id, "Gaze", "Eyetracking", 2, 60, "float32")
			}
			id++
		}

		file, err := Read(w.reader())
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		eeg, err := file.EEGStream()
		if err != nil {
			t.Fatalf("position %d: %v", eegPos, err)
		}
		if eeg.Type != "EEG" {
			t.Errorf("position %d: selected stream of type %q", eegPos, eeg.Type)
		}
		if eeg != file.Streams[eegPos] {
			t.Errorf("position %d: wrong stream selected", eegPos)
		}
	}
}

func TestEEGStreamMissing(t *testing.T) {
	w := newChunkWriter()
	w.streamHeader(1, "Gaze", "Eyetracking", 2, 60, "float32")

	file, err := Read(w.reader())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, err := file.EEGStream(); err != ErrNoEEGStream {
		t.Fatalf("expected ErrNoEEGStream, got %v", err)
	}
}

func TestMarkerStreamValues(t *testing.T) {
	w := newChunkWriter()
	w.streamHeader(7, "Presentation", "Markers", 1, 0, "string")
	w.stringSamples(7, []float64{1.0, 2.0}, []string{"<ecode>11</ecode>", "start"})

	file, err := Read(w.reader())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	markers, err := file.MarkerStream()
	if err != nil {
		t.Fatalf("MarkerStream: %v", err)
	}
	if len(markers.Values) != 2 || markers.Values[0] != "<ecode>11</ecode>" {
		t.Errorf("values = %v", markers.Values)
	}
}

func TestReadTruncatedChunk(t *testing.T) {
	w := newChunkWriter()
	w.streamHeader(1, "eeg", "EEG", 1, 250, "float32")
	raw := w.buf.Bytes()
	// Drop the tail of the stream header chunk.
	_, err := Read(bytes.NewReader(raw[:len(raw)-5]))
	if err == nil {
		t.Fatal("expected an error for a truncated chunk")
	}
}

func TestReadSkipsUnknownChunks(t *testing.T) {
	w := newChunkWriter()
	w.chunk(0x7777, []byte("future extension data"))
	w.streamHeader(1, "eeg", "EEG", 1, 250, "float32")

	file, err := Read(w.reader())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(file.Streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(file.Streams))
	}
}

func TestEffectiveRate(t *testing.T) {
	s := &Stream{NominalRate: 250, Timestamps: []float64{0, 0.5, 1.0}}
	if got := s.EffectiveRate(); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("EffectiveRate = %g, want 2.0", got)
	}
	s = &Stream{NominalRate: 250, Timestamps: []float64{3.0}}
	if got := s.EffectiveRate(); got != 250 {
		t.Errorf("EffectiveRate fallback = %g, want 250", got)
	}
}

func TestClockOffsetApplied(t *testing.T) {
	w := newChunkWriter()
	w.streamHeader(1, "eeg", "EEG", 1, 250, "float32")
	w.float32Samples(1, []float64{10.0}, [][]float32{{1}})

	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, uint32(1))
	binary.Write(&content, binary.LittleEndian, 10.0) // collection time
	binary.Write(&content, binary.LittleEndian, 0.25) // offset
	w.chunk(tagClockOffset, content.Bytes())

	file, err := Read(w.reader())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := file.Streams[0].Timestamps[0]; math.Abs(got-10.25) > 1e-12 {
		t.Errorf("timestamp with offset = %g, want 10.25", got)
	}
}
