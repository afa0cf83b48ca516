package xdf

import (
	"bufio"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// reader tracks the byte offset alongside the buffered stream so parse
// errors can say where the file went wrong.
type reader struct {
	br     *bufio.Reader
	offset int64
}

func (r *reader) read(p []byte) error {
	n, err := io.ReadFull(r.br, p)
	r.offset += int64(n)
	if err != nil {
		return err
	}
	return nil
}

func (r *reader) readByte() (byte, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, err
	}
	r.offset++
	return b, nil
}

func (r *reader) readUint16() (uint16, error) {
	var buf [2]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (r *reader) readUint32() (uint32, error) {
	var buf [4]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *reader) readUint64() (uint64, error) {
	var buf [8]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (r *reader) readDouble() (float64, error) {
	v, err := r.readUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// readVarlen reads one of XDF's variable-length unsigned integers: a length
// byte (1, 4 or 8) followed by the value itself.
func (r *reader) readVarlen() (uint64, error) {
	nbytes, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch nbytes {
	case 1:
		b, err := r.readByte()
		return uint64(b), err
	case 4:
		v, err := r.readUint32()
		return uint64(v), err
	case 8:
		return r.readUint64()
	default:
		return 0, fmt.Errorf("invalid varlen size byte %d at offset %d", nbytes, r.offset-1)
	}
}

func (r *reader) skip(n int64) error {
	skipped, err := io.CopyN(io.Discard, r.br, n)
	r.offset += skipped
	return err
}

// ReadFile reads a complete XDF recording: all stream headers, samples,
// clock offsets and footers. Unknown chunk tags are skipped by length.
// Per-stream clock offsets are applied to the timestamps as the mean
// measured offset, which is enough to align streams captured on one host.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return file, nil
}

// Read parses an XDF recording from r.
func Read(src io.Reader) (*File, error) {
	r := &reader{br: bufio.NewReaderSize(src, 1<<16)}

	var magic [4]byte
	if err := r.read(magic[:]); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic[:]) != "XDF:" {
		return nil, ErrNotXDF
	}

	file := &File{}
	streams := make(map[uint32]*Stream)

	for {
		chunkStart := r.offset
		length, err := r.readVarlen()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading chunk length at offset %d: %w", chunkStart, err)
		}
		if length < 2 {
			return nil, fmt.Errorf("chunk at offset %d shorter than its tag", chunkStart)
		}

		tag, err := r.readUint16()
		if err != nil {
			return nil, fmt.Errorf("reading chunk tag at offset %d: %w", chunkStart, err)
		}
		contentLen := int64(length) - 2

		switch tag {
		case tagFileHeader:
			if err := readFileHeader(r, contentLen, file); err != nil {
				return nil, err
			}

		case tagStreamHeader:
			s, err := readStreamHeader(r, contentLen)
			if err != nil {
				return nil, err
			}
			streams[s.ID] = s
			file.Streams = append(file.Streams, s)

		case tagSamples:
			if err := readSamples(r, contentLen, streams); err != nil {
				return nil, err
			}

		case tagClockOffset:
			if err := readClockOffset(r, streams); err != nil {
				return nil, err
			}

		case tagBoundary, tagStreamFooter:
			if err := r.skip(contentLen); err != nil {
				return nil, fmt.Errorf("skipping chunk tag %d: %w", tag, err)
			}

		default:
			// Forward compatibility: unknown chunks are skippable by design.
			if err := r.skip(contentLen); err != nil {
				return nil, fmt.Errorf("skipping unknown chunk tag %d at offset %d: %w", tag, chunkStart, err)
			}
		}
	}

	for _, s := range file.Streams {
		applyClockOffsets(s)
	}
	return file, nil
}

func readFileHeader(r *reader, contentLen int64, file *File) error {
	payload := make([]byte, contentLen)
	if err := r.read(payload); err != nil {
		return fmt.Errorf("reading file header: %w", err)
	}
	var hdr struct {
		XMLName xml.Name `xml:"info"`
		Version string   `xml:"version"`
	}
	if err := xml.Unmarshal(payload, &hdr); err != nil {
		return fmt.Errorf("parsing file header XML: %w", err)
	}
	file.Version = hdr.Version
	return nil
}

// streamInfoXML mirrors the <info> document of a stream header chunk.
type streamInfoXML struct {
	XMLName       xml.Name `xml:"info"`
	Name          string   `xml:"name"`
	Type          string   `xml:"type"`
	ChannelCount  int      `xml:"channel_count"`
	NominalSrate  float64  `xml:"nominal_srate"`
	ChannelFormat string   `xml:"channel_format"`
	Desc          struct {
		Channels struct {
			Channel []struct {
				Label    string `xml:"label"`
				Type     string `xml:"type"`
				Unit     string `xml:"unit"`
				Location *struct {
					X string `xml:"X"`
					Y string `xml:"Y"`
					Z string `xml:"Z"`
				} `xml:"location"`
			} `xml:"channel"`
		} `xml:"channels"`
	} `xml:"desc"`
}

func readStreamHeader(r *reader, contentLen int64) (*Stream, error) {
	if contentLen < 4 {
		return nil, fmt.Errorf("%w: stream header chunk too short", ErrMalformedHeader)
	}
	id, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("reading stream id: %w", err)
	}

	payload := make([]byte, contentLen-4)
	if err := r.read(payload); err != nil {
		return nil, fmt.Errorf("reading stream %d header: %w", id, err)
	}

	var info streamInfoXML
	if err := xml.Unmarshal(payload, &info); err != nil {
		return nil, fmt.Errorf("%w: stream %d: %v", ErrMalformedHeader, id, err)
	}
	if info.ChannelCount <= 0 {
		return nil, fmt.Errorf("%w: stream %d declares %d channels", ErrMalformedHeader, id, info.ChannelCount)
	}

	format := SampleFormat(info.ChannelFormat)
	switch format {
	case FormatFloat32, FormatDouble, FormatInt8, FormatInt16, FormatInt32, FormatInt64, FormatString:
	default:
		return nil, fmt.Errorf("%w: stream %d declares %q", ErrUnknownFormat, id, info.ChannelFormat)
	}

	s := &Stream{
		ID:           id,
		Name:         info.Name,
		Type:         info.Type,
		ChannelCount: info.ChannelCount,
		NominalRate:  info.NominalSrate,
		Format:       format,
	}
	for _, ch := range info.Desc.Channels.Channel {
		meta := ChannelMeta{Label: ch.Label, Type: ch.Type, Unit: ch.Unit}
		if ch.Location != nil {
			meta.HasLocation = true
			meta.LocX, meta.LocY, meta.LocZ = ch.Location.X, ch.Location.Y, ch.Location.Z
		}
		s.Channels = append(s.Channels, meta)
	}
	if s.Format != FormatString {
		s.Series = make([][]float64, s.ChannelCount)
	}
	return s, nil
}

func readSamples(r *reader, contentLen int64, streams map[uint32]*Stream) error {
	start := r.offset
	id, err := r.readUint32()
	if err != nil {
		return fmt.Errorf("reading samples stream id: %w", err)
	}
	s, ok := streams[id]
	if !ok {
		// Samples for a stream whose header never appeared: unrecoverable,
		// since the payload layout depends on the header.
		return fmt.Errorf("samples chunk at offset %d references unknown stream %d", start, id)
	}

	n, err := r.readVarlen()
	if err != nil {
		return fmt.Errorf("reading sample count for stream %d: %w", id, err)
	}

	for i := uint64(0); i < n; i++ {
		tsBytes, err := r.readByte()
		if err != nil {
			return fmt.Errorf("reading timestamp flag for stream %d: %w", id, err)
		}

		var ts float64
		switch tsBytes {
		case 0:
			// Deduced timestamp: previous plus one nominal interval.
			if len(s.Timestamps) > 0 {
				ts = s.Timestamps[len(s.Timestamps)-1]
				if s.NominalRate > 0 {
					ts += 1.0 / s.NominalRate
				}
			}
		case 8:
			ts, err = r.readDouble()
			if err != nil {
				return fmt.Errorf("reading timestamp for stream %d: %w", id, err)
			}
		default:
			return fmt.Errorf("stream %d: invalid timestamp length %d at offset %d", id, tsBytes, r.offset-1)
		}
		s.Timestamps = append(s.Timestamps, ts)

		if s.Format == FormatString {
			if err := readStringSample(r, s); err != nil {
				return err
			}
			continue
		}
		if err := readNumericSample(r, s); err != nil {
			return err
		}
	}
	return nil
}

func readStringSample(r *reader, s *Stream) error {
	// String streams carry one value per channel; markers have one channel,
	// but honor the declared count either way.
	var joined string
	for c := 0; c < s.ChannelCount; c++ {
		slen, err := r.readVarlen()
		if err != nil {
			return fmt.Errorf("reading string length for stream %d: %w", s.ID, err)
		}
		buf := make([]byte, slen)
		if err := r.read(buf); err != nil {
			return fmt.Errorf("reading string value for stream %d: %w", s.ID, err)
		}
		if c == 0 {
			joined = string(buf)
		} else {
			joined += "\x1d" + string(buf)
		}
	}
	s.Values = append(s.Values, joined)
	return nil
}

func readNumericSample(r *reader, s *Stream) error {
	for c := 0; c < s.ChannelCount; c++ {
		var v float64
		switch s.Format {
		case FormatFloat32:
			u, err := r.readUint32()
			if err != nil {
				return fmt.Errorf("reading float32 sample for stream %d: %w", s.ID, err)
			}
			v = float64(math.Float32frombits(u))
		case FormatDouble:
			d, err := r.readDouble()
			if err != nil {
				return fmt.Errorf("reading double sample for stream %d: %w", s.ID, err)
			}
			v = d
		case FormatInt8:
			b, err := r.readByte()
			if err != nil {
				return fmt.Errorf("reading int8 sample for stream %d: %w", s.ID, err)
			}
			v = float64(int8(b))
		case FormatInt16:
			u, err := r.readUint16()
			if err != nil {
				return fmt.Errorf("reading int16 sample for stream %d: %w", s.ID, err)
			}
			v = float64(int16(u))
		case FormatInt32:
			u, err := r.readUint32()
			if err != nil {
				return fmt.Errorf("reading int32 sample for stream %d: %w", s.ID, err)
			}
			v = float64(int32(u))
		case FormatInt64:
			u, err := r.readUint64()
			if err != nil {
				return fmt.Errorf("reading int64 sample for stream %d: %w", s.ID, err)
			}
			v = float64(int64(u))
		default:
			return fmt.Errorf("%w: %q", ErrUnknownFormat, s.Format)
		}
		s.Series[c] = append(s.Series[c], v)
	}
	return nil
}

func readClockOffset(r *reader, streams map[uint32]*Stream) error {
	id, err := r.readUint32()
	if err != nil {
		return fmt.Errorf("reading clock offset stream id: %w", err)
	}
	collection, err := r.readDouble()
	if err != nil {
		return fmt.Errorf("reading clock offset time: %w", err)
	}
	offset, err := r.readDouble()
	if err != nil {
		return fmt.Errorf("reading clock offset value: %w", err)
	}
	if s, ok := streams[id]; ok {
		s.ClockOffsets = append(s.ClockOffsets, ClockOffset{CollectionTime: collection, Offset: offset})
	}
	return nil
}

func applyClockOffsets(s *Stream) {
	if len(s.ClockOffsets) == 0 || len(s.Timestamps) == 0 {
		return
	}
	sum := 0.0
	for _, o := range s.ClockOffsets {
		sum += o.Offset
	}
	mean := sum / float64(len(s.ClockOffsets))
	for i := range s.Timestamps {
		s.Timestamps[i] += mean
	}
}
