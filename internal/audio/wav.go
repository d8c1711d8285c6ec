package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WAV format tags we understand. Extensible headers are unwrapped to one of
// these before decoding.
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

type wavFormat struct {
	tag        uint16
	channels   int
	sampleRate int
	blockAlign int
	bits       int
}

// DecodeWAV parses a RIFF/WAVE stream into a planar buffer. PCM 8/16/24/32
// and IEEE float 32/64 payloads are supported, including the extensible
// header variant.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a wav stream")
	}

	var format *wavFormat
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("wav stream has no data chunk")
			}
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			parsed, err := parseFormatChunk(r, size)
			if err != nil {
				return nil, err
			}
			format = parsed
		case "data":
			if format == nil {
				return nil, fmt.Errorf("wav data chunk precedes fmt chunk")
			}
			payload := make([]byte, size)
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, fmt.Errorf("read wav data: %w", err)
			}
			return decodeSamples(format, payload)
		default:
			if err := skipChunk(r, size); err != nil {
				return nil, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

func parseFormatChunk(r io.Reader, size uint32) (*wavFormat, error) {
	if size < 16 {
		return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read fmt chunk: %w", err)
	}
	if size%2 == 1 {
		if err := skipChunk(r, 0); err != nil {
			return nil, err
		}
	}

	format := &wavFormat{
		tag:        binary.LittleEndian.Uint16(body[0:2]),
		channels:   int(binary.LittleEndian.Uint16(body[2:4])),
		sampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
		blockAlign: int(binary.LittleEndian.Uint16(body[12:14])),
		bits:       int(binary.LittleEndian.Uint16(body[14:16])),
	}

	if format.tag == wavFormatExtensible {
		// Subformat GUID starts at offset 24; its leading two bytes carry
		// the real format tag.
		if len(body) < 26 {
			return nil, fmt.Errorf("extensible fmt chunk too short: %d bytes", len(body))
		}
		format.tag = binary.LittleEndian.Uint16(body[24:26])
	}

	switch format.tag {
	case wavFormatPCM, wavFormatIEEEFloat:
	default:
		return nil, fmt.Errorf("unsupported wav format tag %d", format.tag)
	}
	if format.channels <= 0 {
		return nil, fmt.Errorf("wav reports %d channels", format.channels)
	}
	if format.sampleRate <= 0 {
		return nil, fmt.Errorf("wav reports sample rate %d", format.sampleRate)
	}
	return format, nil
}

func decodeSamples(format *wavFormat, payload []byte) (*Buffer, error) {
	bytesPerSample := format.bits / 8
	if bytesPerSample <= 0 {
		return nil, fmt.Errorf("wav reports %d bits per sample", format.bits)
	}
	frameSize := bytesPerSample * format.channels
	if format.blockAlign > 0 {
		if format.blockAlign < frameSize {
			return nil, fmt.Errorf("wav block align %d cannot hold %d channels of %d-bit samples",
				format.blockAlign, format.channels, format.bits)
		}
		frameSize = format.blockAlign
	}
	frames := len(payload) / frameSize

	buf := NewBuffer(format.sampleRate, format.channels, frames)
	for frame := 0; frame < frames; frame++ {
		base := frame * frameSize
		for ch := 0; ch < format.channels; ch++ {
			offset := base + ch*bytesPerSample
			sample, err := decodeSample(format, payload[offset:offset+bytesPerSample])
			if err != nil {
				return nil, err
			}
			buf.Data[ch][frame] = sample
		}
	}
	return buf, nil
}

func decodeSample(format *wavFormat, raw []byte) (float32, error) {
	switch format.tag {
	case wavFormatPCM:
		switch format.bits {
		case 8:
			return (float32(raw[0]) - 128) / 128, nil
		case 16:
			v := int16(binary.LittleEndian.Uint16(raw))
			return float32(v) / 32768, nil
		case 24:
			v := int32(raw[0]) | int32(raw[1])<<8 | int32(raw[2])<<16
			if v&0x800000 != 0 {
				v -= 0x1000000
			}
			return float32(v) / 8388608, nil
		case 32:
			v := int32(binary.LittleEndian.Uint32(raw))
			return float32(v) / 2147483648, nil
		}
	case wavFormatIEEEFloat:
		switch format.bits {
		case 32:
			return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil
		case 64:
			return float32(math.Float64frombits(binary.LittleEndian.Uint64(raw))), nil
		}
	}
	return 0, fmt.Errorf("unsupported wav payload: format %d, %d bits", format.tag, format.bits)
}

func skipChunk(r io.Reader, size uint32) error {
	// Chunks are word-aligned; odd sizes carry a pad byte.
	skip := int64(size)
	if size%2 == 1 {
		skip++
	}
	if skip == 0 {
		return nil
	}
	if seeker, ok := r.(io.Seeker); ok {
		_, err := seeker.Seek(skip, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, r, skip)
	return err
}

// EncodeWAV writes the buffer as an IEEE float32 WAV stream. Samples are
// written as-is; callers that need peak limiting normalize beforehand.
func EncodeWAV(w io.Writer, buf *Buffer) error {
	channels := buf.Channels()
	if channels == 0 {
		return fmt.Errorf("cannot encode buffer with no channels")
	}
	frames := buf.Frames()
	blockAlign := channels * 4
	dataSize := frames * blockAlign

	// fmt (18 bytes incl. cbSize) + fact (4 bytes) + data.
	riffSize := 4 + (8 + 18) + (8 + 4) + (8 + dataSize)

	header := make([]byte, 0, 58)
	header = append(header, "RIFF"...)
	header = binary.LittleEndian.AppendUint32(header, uint32(riffSize))
	header = append(header, "WAVE"...)

	header = append(header, "fmt "...)
	header = binary.LittleEndian.AppendUint32(header, 18)
	header = binary.LittleEndian.AppendUint16(header, wavFormatIEEEFloat)
	header = binary.LittleEndian.AppendUint16(header, uint16(channels))
	header = binary.LittleEndian.AppendUint32(header, uint32(buf.SampleRate))
	header = binary.LittleEndian.AppendUint32(header, uint32(buf.SampleRate*blockAlign))
	header = binary.LittleEndian.AppendUint16(header, uint16(blockAlign))
	header = binary.LittleEndian.AppendUint16(header, 32)
	header = binary.LittleEndian.AppendUint16(header, 0)

	header = append(header, "fact"...)
	header = binary.LittleEndian.AppendUint32(header, 4)
	header = binary.LittleEndian.AppendUint32(header, uint32(frames))

	header = append(header, "data"...)
	header = binary.LittleEndian.AppendUint32(header, uint32(dataSize))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	const scratchFrames = 4096
	scratch := make([]byte, 0, scratchFrames*blockAlign)
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < channels; ch++ {
			scratch = binary.LittleEndian.AppendUint32(scratch, math.Float32bits(buf.Data[ch][frame]))
		}
		if len(scratch) >= scratchFrames*blockAlign {
			if _, err := w.Write(scratch); err != nil {
				return fmt.Errorf("write wav data: %w", err)
			}
			scratch = scratch[:0]
		}
	}
	if len(scratch) > 0 {
		if _, err := w.Write(scratch); err != nil {
			return fmt.Errorf("write wav data: %w", err)
		}
	}
	return nil
}

// SaveWAV encodes the buffer to a float32 WAV file at path.
func SaveWAV(path string, buf *Buffer) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(file, buf); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
