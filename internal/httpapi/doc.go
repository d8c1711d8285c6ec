// Package httpapi serves the localhost session API the desktop shell talks
// to while a track is being reworked interactively.
//
// A process request uploads audio and decomposes it into spectral components;
// the components stay in memory under a session ID so subsequent mix requests
// can recombine them at different volumes without re-running the analysis.
// Sessions expire after a configurable TTL. The server binds to loopback and
// carries no auth; it is an implementation detail of the app, not a hosted
// service.
package httpapi
