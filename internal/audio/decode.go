package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
)

// ErrUnsupportedFormat reports input that none of the decoders accept.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeFile sniffs the container format and decodes the whole file into a
// planar buffer. Inputs with more than two channels keep only the first pair.
func DecodeFile(path string) (*Buffer, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FormatUnknown, err
	}
	buf, format, err := DecodeBytes(data)
	if err != nil {
		return nil, format, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, format, nil
}

// DecodeBytes decodes in-memory audio data. Sniffing picks the decoder; data
// without a recognizable magic is still tried against each decoder before
// being rejected with ErrUnsupportedFormat.
func DecodeBytes(data []byte) (*Buffer, Format, error) {
	switch DetectFormatBytes(data) {
	case FormatWAV:
		buf, err := decodeWAVBytes(data)
		return buf, FormatWAV, err
	case FormatFLAC:
		buf, err := decodeBeepBytes(data, FormatFLAC)
		return buf, FormatFLAC, err
	case FormatMP3:
		buf, err := decodeBeepBytes(data, FormatMP3)
		return buf, FormatMP3, err
	}

	// No magic matched. MP3 goes last: its frame-sync scan accepts almost
	// anything.
	if buf, err := decodeWAVBytes(data); err == nil {
		return buf, FormatWAV, nil
	}
	if buf, err := decodeBeepBytes(data, FormatFLAC); err == nil {
		return buf, FormatFLAC, nil
	}
	if buf, err := decodeBeepBytes(data, FormatMP3); err == nil {
		return buf, FormatMP3, nil
	}
	return nil, FormatUnknown, ErrUnsupportedFormat
}

func decodeWAVBytes(data []byte) (*Buffer, error) {
	buf, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if buf.Channels() > 2 {
		buf.Data = buf.Data[:2]
	}
	return buf, nil
}

func decodeBeepBytes(data []byte, format Format) (*Buffer, error) {
	reader := io.NopCloser(bytes.NewReader(data))

	var (
		streamer   beep.StreamSeekCloser
		beepFormat beep.Format
		err        error
	)
	switch format {
	case FormatMP3:
		streamer, beepFormat, err = mp3.Decode(reader)
	case FormatFLAC:
		streamer, beepFormat, err = flac.Decode(reader)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	defer streamer.Close()
	return drainStreamer(streamer, beepFormat), nil
}

// drainStreamer pulls an entire beep stream into a planar buffer. Beep
// always streams stereo pairs; mono sources carry the same value in both
// lanes, so a mono target keeps just the left lane.
func drainStreamer(s beep.Streamer, format beep.Format) *Buffer {
	channels := format.NumChannels
	if channels > 2 || channels <= 0 {
		channels = 2
	}

	var left, right []float32
	block := make([][2]float64, 2048)
	for {
		n, ok := s.Stream(block)
		for i := 0; i < n; i++ {
			left = append(left, float32(block[i][0]))
			if channels == 2 {
				right = append(right, float32(block[i][1]))
			}
		}
		if !ok {
			break
		}
	}

	data := [][]float32{left}
	if channels == 2 {
		data = append(data, right)
	}
	return &Buffer{SampleRate: int(format.SampleRate), Data: data}
}
