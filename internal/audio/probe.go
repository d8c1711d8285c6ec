package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
)

// Info summarizes an audio file without decoding its samples into memory.
type Info struct {
	Path       string
	Format     Format
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
	Duration   time.Duration
	SizeBytes  int64
}

// Probe inspects an audio file's header. WAV files are read without touching
// sample data; compressed formats open a decoder to learn their geometry.
func Probe(path string) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}

	format, err := DetectFormat(path)
	if err != nil {
		return Info{}, err
	}

	info := Info{Path: path, Format: format, SizeBytes: stat.Size()}

	switch format {
	case FormatWAV:
		file, err := os.Open(path)
		if err != nil {
			return Info{}, err
		}
		defer file.Close()
		if err := probeWAV(file, &info); err != nil {
			return Info{}, fmt.Errorf("probe %s: %w", path, err)
		}

	case FormatMP3:
		file, err := os.Open(path)
		if err != nil {
			return Info{}, err
		}
		streamer, beepFormat, err := mp3.Decode(file)
		if err != nil {
			file.Close()
			return Info{}, fmt.Errorf("probe %s: %w", path, err)
		}
		defer streamer.Close()
		info.SampleRate = int(beepFormat.SampleRate)
		info.Channels = beepFormat.NumChannels
		info.BitDepth = beepFormat.Precision * 8
		info.Frames = streamer.Len()

	case FormatFLAC:
		file, err := os.Open(path)
		if err != nil {
			return Info{}, err
		}
		streamer, beepFormat, err := flac.Decode(file)
		if err != nil {
			file.Close()
			return Info{}, fmt.Errorf("probe %s: %w", path, err)
		}
		defer streamer.Close()
		info.SampleRate = int(beepFormat.SampleRate)
		info.Channels = beepFormat.NumChannels
		info.BitDepth = beepFormat.Precision * 8
		info.Frames = streamer.Len()

	default:
		return Info{}, fmt.Errorf("unrecognized audio format in %s", path)
	}

	if info.SampleRate > 0 {
		info.Duration = time.Duration(float64(info.Frames) / float64(info.SampleRate) * float64(time.Second))
	}
	return info, nil
}

func probeWAV(r io.ReadSeeker, info *Info) error {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("not a wav stream")
	}

	var format *wavFormat
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return fmt.Errorf("wav stream has no data chunk")
			}
			return fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			parsed, err := parseFormatChunk(r, size)
			if err != nil {
				return err
			}
			format = parsed
		case "data":
			if format == nil {
				return fmt.Errorf("wav data chunk precedes fmt chunk")
			}
			info.SampleRate = format.sampleRate
			info.Channels = format.channels
			info.BitDepth = format.bits
			frameSize := format.blockAlign
			if frameSize <= 0 {
				frameSize = format.channels * format.bits / 8
			}
			if frameSize > 0 {
				info.Frames = int(size) / frameSize
			}
			return nil
		default:
			if err := skipChunk(r, size); err != nil {
				return fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}
