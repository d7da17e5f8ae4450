package devices

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"
)

// wavReadFrames is the number of frames decoded per WAV read
const wavReadFrames = 4096

// pcmSource yields interleaved samples normalised to [-1, 1]
type pcmSource interface {
	channels() int
	sampleRate() int
	// read returns the next run of interleaved samples or io.EOF when done
	read() ([]float64, error)
}

// pcmDivisor returns the full scale value for a signed PCM bit depth
func pcmDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float64(int64(1) << (bitDepth - 1)), nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}

type wavSource struct {
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	divisor float64
	out     []float64
}

func newWAVSource(r io.ReadSeeker) (*wavSource, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("input is not a valid WAV audio file")
	}

	divisor, err := pcmDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	nch := int(decoder.NumChans)
	return &wavSource{
		decoder: decoder,
		buf: &audio.IntBuffer{
			Data:   make([]int, wavReadFrames*nch),
			Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: nch},
		},
		divisor: divisor,
		out:     make([]float64, wavReadFrames*nch),
	}, nil
}

func (w *wavSource) channels() int   { return int(w.decoder.NumChans) }
func (w *wavSource) sampleRate() int { return int(w.decoder.SampleRate) }

func (w *wavSource) read() ([]float64, error) {
	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	for i, v := range w.buf.Data[:n] {
		w.out[i] = float64(v) / w.divisor
	}
	return w.out[:n], nil
}

type flacSource struct {
	decoder *flac.Decoder
	divisor float64
	bytesPS int
	out     []float64
}

func newFLACSource(r io.Reader) (*flacSource, error) {
	decoder, err := flac.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	divisor, err := pcmDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, err
	}
	return &flacSource{
		decoder: decoder,
		divisor: divisor,
		bytesPS: decoder.BitsPerSample / 8,
	}, nil
}

func (f *flacSource) channels() int   { return f.decoder.NChannels }
func (f *flacSource) sampleRate() int { return f.decoder.SampleRate }

// read decodes one FLAC frame. Frames arrive as little endian interleaved PCM.
func (f *flacSource) read() ([]float64, error) {
	frame, err := f.decoder.Next()
	if err != nil {
		return nil, err
	}

	n := len(frame) / f.bytesPS
	f.out = f.out[:0]
	for i := range n {
		f.out = append(f.out, float64(decodePCM(frame[i*f.bytesPS:], f.bytesPS))/f.divisor)
	}
	return f.out, nil
}

// decodePCM reads one signed little endian sample of width bytes
func decodePCM(b []byte, width int) int32 {
	switch width {
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		// sign extend from 24 bits
		return v << 8 >> 8
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}
