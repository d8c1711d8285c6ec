// Package audio owns sample buffers and the file codecs the toolkit reads and
// writes.
//
// Decoding is format-sniffed rather than extension-driven: WAV goes through
// the package's own RIFF codec so float32 stems survive a round trip, while
// MP3 and FLAC are decoded through beep's wrappers. All decoded audio lands in
// a planar Buffer that downstream spectral code consumes one channel at a
// time. Encoding always produces IEEE float32 WAV, the interchange format the
// rest of the pipeline expects.
package audio
