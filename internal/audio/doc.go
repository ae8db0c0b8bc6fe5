// Package audio provides media track playback for the daemon. It uses the
// beep library to decode and play WAV, OGG, and MP3 files with volume
// control, and exposes the playback side as a play-sync party so display
// templates stay synchronized with what is audible.
package audio
