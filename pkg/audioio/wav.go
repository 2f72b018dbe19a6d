// Package audioio reads, converts and writes the WAV files played on the robot.
//
// The robot streams 16 kHz mono PCM16 only. ToRobotFormat converts anything
// ReadWAV accepts into that format before upload.
package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Errors returned by ReadWAV.
var (
	ErrNotWAV      = errors.New("audioio: not a RIFF/WAVE file")
	ErrUnsupported = errors.New("audioio: unsupported WAV encoding")
	ErrNoData      = errors.New("audioio: no data chunk")
)

const formatPCM = 1

// WAV is a decoded PCM WAV file.
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Data          []byte
}

// IsRobotFormat reports whether w can be streamed to the robot unchanged.
func (w *WAV) IsRobotFormat() bool {
	return w.SampleRate == RobotRate && w.Channels == 1 && w.BitsPerSample == 16
}

// Duration returns the playing time of the data.
func (w *WAV) Duration() time.Duration {
	frame := w.Channels * w.BitsPerSample / 8
	if frame == 0 || w.SampleRate == 0 {
		return 0
	}
	frames := len(w.Data) / frame
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// ReadWAV parses a RIFF/WAVE stream holding 8- or 16-bit PCM.
func ReadWAV(r io.Reader) (*WAV, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, ErrNotWAV
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	w := &WAV{}
	haveFmt := false
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrNoData
			}
			return nil, err
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupported)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
			if binary.LittleEndian.Uint16(buf[0:2]) != formatPCM {
				return nil, fmt.Errorf("%w: format tag %d", ErrUnsupported, binary.LittleEndian.Uint16(buf[0:2]))
			}
			w.Channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			w.BitsPerSample = int(binary.LittleEndian.Uint16(buf[14:16]))
			if w.BitsPerSample != 8 && w.BitsPerSample != 16 {
				return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupported, w.BitsPerSample)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrUnsupported)
			}
			data, err := io.ReadAll(io.LimitReader(r, size))
			if err != nil {
				return nil, err
			}
			w.Data = data
			return w, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return nil, ErrNoData
			}
		}
		// Chunks are word aligned.
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return nil, ErrNoData
			}
		}
	}
}

// ReadWAVFile opens and parses path.
func ReadWAVFile(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWAV(f)
}

// ToRobotFormat returns w converted to 16 kHz mono PCM16.
func ToRobotFormat(w *WAV) *WAV {
	if w.IsRobotFormat() {
		return w
	}

	var samples []int16
	if w.BitsPerSample == 8 {
		samples = make([]int16, len(w.Data))
		for i, b := range w.Data {
			samples[i] = (int16(b) - 128) << 8
		}
	} else {
		samples = BytesToSamples(w.Data)
	}

	mono := Downmix(samples, w.Channels)
	out, err := ResampleHQ(mono, w.SampleRate, RobotRate)
	if err != nil {
		out = Resample(mono, w.SampleRate, RobotRate)
	}
	return &WAV{
		SampleRate:    RobotRate,
		Channels:      1,
		BitsPerSample: 16,
		Data:          SamplesToBytes(out),
	}
}

// WriteWAV writes w as a canonical 44-byte-header WAV stream.
func WriteWAV(out io.Writer, w *WAV) error {
	blockAlign := w.Channels * w.BitsPerSample / 8
	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, uint32(36+len(w.Data)))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(formatPCM))
	binary.Write(&hdr, binary.LittleEndian, uint16(w.Channels))
	binary.Write(&hdr, binary.LittleEndian, uint32(w.SampleRate))
	binary.Write(&hdr, binary.LittleEndian, uint32(w.SampleRate*blockAlign))
	binary.Write(&hdr, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&hdr, binary.LittleEndian, uint16(w.BitsPerSample))
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, uint32(len(w.Data)))

	if _, err := out.Write(hdr.Bytes()); err != nil {
		return err
	}
	_, err := out.Write(w.Data)
	return err
}

// Encode returns w as WAV file bytes.
func Encode(w *WAV) []byte {
	var buf bytes.Buffer
	_ = WriteWAV(&buf, w)
	return buf.Bytes()
}
