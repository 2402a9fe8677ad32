package alsahal

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceProvider hands out an interleaved buffer in pieces of at most chunk frames.
type sliceProvider struct {
	data     []int16
	channels int
	chunk    int
	pos      int
	last     int
}

func (p *sliceProvider) NextBuffer(frames int) ([]int16, error) {
	left := (len(p.data) - p.pos) / p.channels
	if left == 0 {
		return nil, io.EOF
	}

	n := min(frames, left, p.chunk)
	p.last = n

	return p.data[p.pos : p.pos+n*p.channels], nil
}

func (p *sliceProvider) ReleaseBuffer(frames int) {
	p.pos += min(frames, p.last) * p.channels
}

func ramp(frames, channels int) []int16 {
	out := make([]int16, frames*channels)
	for i := range frames {
		for c := range channels {
			out[i*channels+c] = int16((i*37 + c*1000) % 20000)
		}
	}

	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func TestNewResamplerRejectsBadArguments(t *testing.T) {
	_, err := NewResampler(0, 48000, 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewResampler(44100, 48000, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	r, err := NewResampler(48000, 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), r.InRate())
	assert.Equal(t, uint32(16000), r.OutRate())
	assert.Equal(t, 1, r.Channels())
}

func TestResampleOutputCount(t *testing.T) {
	rates := [][2]int{{48000, 44100}, {44100, 48000}, {48000, 8000}, {48000, 16000}, {16000, 48000}, {48000, 48000}}

	for _, rate := range rates {
		r, err := NewResampler(uint32(rate[0]), uint32(rate[1]), 2)
		require.NoError(t, err)

		in := ramp(1000, 2)
		out := make([]int16, 2*r.MaxOutput(len(in)/2)+16)

		total := 0
		for k := 0; k < 1000; k++ {
			consumed, produced := r.Resample(in[2*k:2*k+2], out[2*total:])
			require.Equal(t, 1, consumed)
			total += produced

			if k+1 >= 3 {
				require.Equal(t, ceilDiv((k+1-2)*rate[1], rate[0]), total, "rate %v after %d frames", rate, k+1)
			}
		}
	}
}

func TestResampleChunkedMatchesOneShot(t *testing.T) {
	in := ramp(4800, 2)

	one, err := NewResampler(48000, 44100, 2)
	require.NoError(t, err)

	whole := make([]int16, 2*one.MaxOutput(4800))
	_, n := one.Resample(in, whole)
	whole = whole[:2*n]

	chunked, err := NewResampler(48000, 44100, 2)
	require.NoError(t, err)

	var got []int16
	buf := make([]int16, 2*chunked.MaxOutput(480))
	for off := 0; off < len(in); off += 2 * 480 {
		c, p := chunked.Resample(in[off:off+2*480], buf)
		require.Equal(t, 480, c)
		assert.LessOrEqual(t, p, chunked.MaxOutput(480))
		got = append(got, buf[:2*p]...)
	}

	assert.Equal(t, whole, got)
}

func TestResamplePushPullEquivalence(t *testing.T) {
	for _, rates := range [][2]uint32{{48000, 16000}, {44100, 48000}, {48000, 11025}} {
		in := ramp(2000, 1)

		push, err := NewResampler(rates[0], rates[1], 1)
		require.NoError(t, err)

		want := make([]int16, push.MaxOutput(2000))
		_, n := push.Resample(in, want)
		want = want[:n]

		pull, err := NewResampler(rates[0], rates[1], 1)
		require.NoError(t, err)

		got := make([]int16, n)
		produced, err := pull.ResampleFrom(&sliceProvider{data: in, channels: 1, chunk: 333}, got)
		require.NoError(t, err)
		assert.Equal(t, n, produced)
		assert.Equal(t, want, got, "rates %v", rates)
	}
}

func TestResampleFromProviderError(t *testing.T) {
	r, err := NewResampler(48000, 16000, 1)
	require.NoError(t, err)

	out := make([]int16, 1000)
	n, err := r.ResampleFrom(&sliceProvider{data: ramp(30, 1), channels: 1, chunk: 10}, out)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, ceilDiv(28*16000, 48000), n)
}

func TestResampleIdentity(t *testing.T) {
	r, err := NewResampler(48000, 48000, 1)
	require.NoError(t, err)

	in := ramp(100, 1)
	out := make([]int16, r.MaxOutput(100))
	_, n := r.Resample(in, out)

	require.Equal(t, 98, n)
	assert.Equal(t, in[:98], out[:98])
}

func TestResampleClamps(t *testing.T) {
	r, err := NewResampler(48000, 44100, 1)
	require.NoError(t, err)

	in := []int16{math.MinInt16, math.MaxInt16, math.MinInt16, math.MaxInt16, math.MinInt16, math.MaxInt16}
	out := make([]int16, r.MaxOutput(len(in)))

	_, n := r.Resample(in, out)
	require.Positive(t, n)
}

// writeSine stores a mono 16-bit sine as a WAV file.
func writeSine(t *testing.T, path string, rate, frames int, freq float64) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, frames),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}

	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func rms(s []int16) float64 {
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}

	return math.Sqrt(sum / float64(len(s)))
}

func TestResampleWAVFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sine.wav")
	writeSine(t, path, 44100, 44100, 440)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, 44100, buf.Format.SampleRate)

	in := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		in[i] = int16(v)
	}

	r, err := NewResampler(uint32(buf.Format.SampleRate), 48000, 1)
	require.NoError(t, err)

	out := make([]int16, r.MaxOutput(len(in)))
	_, n := r.Resample(in, out)
	out = out[:n]

	assert.Equal(t, ceilDiv((len(in)-2)*48000, 44100), n)
	assert.InDelta(t, rms(in), rms(out), rms(in)*0.01)
}
