package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Format identifies a supported audio container.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatUnknown Format = ""
)

// sniffLen covers the RIFF header, which is the longest magic we inspect.
const sniffLen = 12

// DetectFormat sniffs the container format from the file's leading bytes.
// Extensions are ignored.
func DetectFormat(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer file.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return FormatUnknown, fmt.Errorf("read header of %s: %w", path, err)
	}
	return DetectFormatBytes(header[:n]), nil
}

// DetectFormatBytes classifies a leading byte slice. Unknown data yields
// FormatUnknown.
func DetectFormatBytes(header []byte) Format {
	if len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")) {
		return FormatWAV
	}
	if len(header) >= 4 && bytes.Equal(header[0:4], []byte("fLaC")) {
		return FormatFLAC
	}
	if len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")) {
		return FormatMP3
	}
	// Raw MPEG frame sync: eleven set bits.
	if len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0 {
		return FormatMP3
	}
	return FormatUnknown
}
