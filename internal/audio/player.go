package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Player handles playback of a single media track at a time.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Volume control (0.0 to 1.0)
	volume float64

	// Whether speaker has been initialized
	initialized bool

	// Sample rate for the speaker
	sampleRate beep.SampleRate

	// Track in flight
	stream beep.StreamSeekCloser
	format beep.Format
}

// NewPlayer creates a new audio player.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}

	return &Player{
		logger:     logger,
		volume:     1.0,
		sampleRate: beep.SampleRate(44100),
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	p.volume = volume
	p.logger.Debug("volume set", "volume", volume)
}

// GetVolume returns the current volume.
func (p *Player) GetVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Play starts playing a track, stopping any track already in flight.
// onDone is invoked from the speaker goroutine when the stream runs out
// naturally; it is not invoked on Stop.
// Supports WAV, OGG, and MP3 formats.
func (p *Player) Play(path string, onDone func()) error {
	if path == "" {
		return nil
	}

	// Expand path
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	stream, format, err := p.openStream(path)
	if err != nil {
		p.logger.Warn("failed to open track", "path", path, "error", err)
		return err
	}

	if err := p.ensureInitialized(format.SampleRate); err != nil {
		_ = stream.Close()
		return err
	}

	p.mu.Lock()
	p.stopLocked()
	p.stream = stream
	p.format = format
	volume := p.volume
	sampleRate := p.sampleRate
	p.mu.Unlock()

	var streamer beep.Streamer = stream
	if format.SampleRate != sampleRate {
		streamer = beep.Resample(4, format.SampleRate, sampleRate, streamer)
	}
	if volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     2,
			Volume:   volumeToDecibels(volume),
			Silent:   volume == 0,
		}
	}

	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		if onDone != nil {
			onDone()
		}
	})))

	p.logger.Debug("track playing", "path", path, "sample_rate", format.SampleRate)
	return nil
}

// openStream opens and decodes a track by extension.
func (p *Player) openStream(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open track: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var stream beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".ogg":
		stream, format, err = vorbis.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	default:
		_ = f.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format: %s", ext)
	}

	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode track: %w", err)
	}
	return stream, format, nil
}

// ensureInitialized initializes the speaker if not already done.
func (p *Player) ensureInitialized(sampleRate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	// Use a reasonable buffer size for low latency
	bufferSize := sampleRate.N(time.Millisecond * 100)

	if err := speaker.Init(sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	p.sampleRate = sampleRate
	p.initialized = true
	p.logger.Debug("speaker initialized", "sample_rate", sampleRate)
	return nil
}

// Stop halts playback and drops the current track. The onDone callback of
// the stopped track is never invoked.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		speaker.Clear()
	}
	p.stopLocked()
}

// stopLocked closes the track in flight. Caller must hold the lock.
func (p *Player) stopLocked() {
	if p.stream != nil {
		_ = p.stream.Close()
		p.stream = nil
	}
}

// Position returns the elapsed playback time of the current track, or zero
// when nothing is playing.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	stream := p.stream
	format := p.format
	initialized := p.initialized
	p.mu.Unlock()

	if stream == nil || !initialized {
		return 0
	}

	speaker.Lock()
	pos := stream.Position()
	speaker.Unlock()

	return format.SampleRate.D(pos)
}

// Close stops all playback and releases resources.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.initialized {
		speaker.Close()
		p.initialized = false
	}
	p.logger.Debug("audio player closed")
}

// volumeToDecibels converts a linear volume (0-1) to decibels.
func volumeToDecibels(volume float64) float64 {
	if volume <= 0 {
		return -100 // Effectively silent
	}
	// Log scale: 0.5 = -6dB, 0.25 = -12dB, etc.
	return 20 * math.Log10(volume)
}
