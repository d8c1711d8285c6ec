// Command remix is the support toolkit for the Remix desktop app: it stages
// and converts separation models, splits tracks into stems, decomposes audio
// into spectral components, generates the app icon, and hosts the localhost
// session API the app's shell talks to.
package main
