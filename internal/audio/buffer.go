package audio

import "time"

// Buffer holds planar audio samples, one slice per channel. All channel
// slices have equal length. Samples are nominally in [-1, 1] but values
// outside that range are preserved until an encoder clamps them.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// NewBuffer allocates a silent buffer with the given geometry.
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, frames)
	}
	return &Buffer{SampleRate: sampleRate, Data: data}
}

// Channels reports the channel count.
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Frames reports the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration reports the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	clone := &Buffer{SampleRate: b.SampleRate, Data: make([][]float32, len(b.Data))}
	for i, ch := range b.Data {
		clone.Data[i] = make([]float32, len(ch))
		copy(clone.Data[i], ch)
	}
	return clone
}

// EnsureStereo returns a two-channel view of the buffer. Mono input is
// duplicated into both channels, anything beyond two channels keeps only the
// first pair. A buffer that is already stereo is returned unchanged.
func (b *Buffer) EnsureStereo() *Buffer {
	switch b.Channels() {
	case 2:
		return b
	case 0:
		return &Buffer{SampleRate: b.SampleRate, Data: [][]float32{{}, {}}}
	case 1:
		dup := make([]float32, len(b.Data[0]))
		copy(dup, b.Data[0])
		return &Buffer{SampleRate: b.SampleRate, Data: [][]float32{b.Data[0], dup}}
	default:
		return &Buffer{SampleRate: b.SampleRate, Data: b.Data[:2]}
	}
}

// Mono mixes all channels down to a single float64 slice for spectral
// analysis.
func (b *Buffer) Mono() []float64 {
	frames := b.Frames()
	out := make([]float64, frames)
	channels := b.Channels()
	if channels == 0 {
		return out
	}
	for _, ch := range b.Data {
		for i, s := range ch {
			out[i] += float64(s)
		}
	}
	inv := 1.0 / float64(channels)
	for i := range out {
		out[i] *= inv
	}
	return out
}

// ChannelFloat64 copies one channel into a float64 slice for spectral
// analysis.
func (b *Buffer) ChannelFloat64(ch int) []float64 {
	out := make([]float64, len(b.Data[ch]))
	for i, s := range b.Data[ch] {
		out[i] = float64(s)
	}
	return out
}

// Peak returns the largest absolute sample value across all channels.
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, ch := range b.Data {
		for _, s := range ch {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
	}
	return peak
}

// NormalizePeak scales the buffer down when its peak exceeds 1.0 and reports
// the gain that was applied. Buffers already within range are left untouched
// and report a gain of 1.
func (b *Buffer) NormalizePeak() float32 {
	peak := b.Peak()
	if peak <= 1.0 || peak == 0 {
		return 1.0
	}
	gain := 1.0 / peak
	for _, ch := range b.Data {
		for i := range ch {
			ch[i] *= gain
		}
	}
	return gain
}
