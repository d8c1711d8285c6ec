package audio

import "github.com/faiface/beep"

// resampleQuality balances sinc interpolation accuracy against speed.
const resampleQuality = 4

// Resample converts the buffer to targetRate using beep's sinc resampler.
// The channel count is preserved. A buffer already at the target rate is
// returned unchanged.
func Resample(buf *Buffer, targetRate int) *Buffer {
	if buf.SampleRate == targetRate || buf.Frames() == 0 {
		return buf
	}

	src := &bufferStreamer{buf: buf.EnsureStereo()}
	resampler := beep.Resample(resampleQuality, beep.SampleRate(buf.SampleRate), beep.SampleRate(targetRate), src)

	out := drainStreamer(resampler, beep.Format{
		SampleRate:  beep.SampleRate(targetRate),
		NumChannels: buf.Channels(),
		Precision:   4,
	})
	out.SampleRate = targetRate
	return out
}

// bufferStreamer adapts a planar Buffer to beep's pull-based Streamer so the
// resampler can consume it.
type bufferStreamer struct {
	buf *Buffer
	pos int
}

func (s *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	frames := s.buf.Frames()
	if s.pos >= frames {
		return 0, false
	}
	n := 0
	for i := range samples {
		if s.pos >= frames {
			break
		}
		samples[i][0] = float64(s.buf.Data[0][s.pos])
		samples[i][1] = float64(s.buf.Data[1][s.pos])
		s.pos++
		n++
	}
	return n, true
}

func (s *bufferStreamer) Err() error { return nil }
