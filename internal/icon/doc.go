// Package icon renders the app icon: five rounded waveform bars over a dark
// vertical gradient, clipped to a rounded rectangle. It can emit single
// PNGs, a macOS .iconset directory, or a complete ICNS container without
// shelling out to iconutil.
package icon
