package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// AudioDecoder abstracts the file formats play understands.
type AudioDecoder interface {
	// PCMBuffer reads interleaved samples into buf and returns the number of samples read.
	PCMBuffer(buf *audio.IntBuffer) (n int, err error)
	NumChans() int
	SampleRate() int
	BitDepth() int
}

// openDecoder picks a decoder by file extension.
func openDecoder(f *os.File) (AudioDecoder, error) {
	switch ext := strings.ToLower(filepath.Ext(f.Name())); ext {
	case ".wav":
		return newWavDecoder(f)
	case ".mp3":
		return newMp3Decoder(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

type wavDecoder struct {
	*wav.Decoder
}

func newWavDecoder(r io.ReadSeeker) (AudioDecoder, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("WAV audio format %d is not linear PCM", decoder.WavAudioFormat)
	}

	return &wavDecoder{Decoder: decoder}, nil
}

func (w *wavDecoder) NumChans() int   { return int(w.Decoder.NumChans) }
func (w *wavDecoder) SampleRate() int { return int(w.Decoder.SampleRate) }
func (w *wavDecoder) BitDepth() int   { return int(w.Decoder.BitDepth) }

// mp3Decoder always yields 16-bit stereo.
type mp3Decoder struct {
	decoder *mp3.Decoder
	bytes   []byte
}

func newMp3Decoder(r io.Reader) (AudioDecoder, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	return &mp3Decoder{decoder: decoder}, nil
}

func (m *mp3Decoder) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	if cap(m.bytes) < len(buf.Data)*2 {
		m.bytes = make([]byte, len(buf.Data)*2)
	}

	b := m.bytes[:len(buf.Data)*2]

	n, err := io.ReadFull(m.decoder, b)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}

	samples := n / 2
	for i := range samples {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(b[2*i:])))
	}

	if samples > 0 && errors.Is(err, io.EOF) {
		err = nil
	}

	return samples, err
}

func (m *mp3Decoder) NumChans() int   { return 2 }
func (m *mp3Decoder) SampleRate() int { return m.decoder.SampleRate() }
func (m *mp3Decoder) BitDepth() int   { return 16 }

// to16 scales a decoded sample of the given bit depth to 16 bits.
func to16(s, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		s >>= bitDepth - 16
	case bitDepth == 8:
		// 8-bit WAV data is unsigned.
		s = (s - 128) << 8
	case bitDepth < 16:
		s <<= 16 - bitDepth
	}

	return int16(max(min(s, 32767), -32768))
}
