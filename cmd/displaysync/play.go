package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var playOpts struct {
	title      string
	artist     string
	album      string
	durationMS int
	serviceID  string
}

var playCmd = &cobra.Command{
	Use:   "play <track>",
	Short: "Play a track and display its now-playing template",
	Long: `Play a local track (WAV, OGG, or MP3) through the daemon and push a
matching now-playing template in the same synchronization group. The display
is torn down by the daemon once playback finishes and the hold duration
expires.

When --title is not given the track's file name is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&playOpts.title, "title", "", "Track title (default: file name)")
	playCmd.Flags().StringVar(&playOpts.artist, "artist", "", "Artist")
	playCmd.Flags().StringVar(&playOpts.album, "album", "", "Album")
	playCmd.Flags().IntVar(&playOpts.durationMS, "duration-ms", 0, "Track duration in ms")
	playCmd.Flags().StringVar(&playOpts.serviceID, "service-id", "", "Play service id (optional)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	track, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve track path: %w", err)
	}

	title := playOpts.title
	if title == "" {
		base := filepath.Base(track)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	meta := map[string]any{
		"type":  "audio",
		"title": title,
	}
	if playOpts.artist != "" {
		meta["artist"] = playOpts.artist
	}
	if playOpts.album != "" {
		meta["album"] = playOpts.album
	}
	if playOpts.durationMS > 0 {
		meta["duration_ms"] = playOpts.durationMS
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	messageID := ulid.Make().String()
	dialogRequestID := ulid.Make().String()

	if err := client.Play(track, string(metaJSON), messageID, dialogRequestID, playOpts.serviceID); err != nil {
		return err
	}

	fmt.Printf("playing %s (dialog %s)\n", title, dialogRequestID)
	return nil
}
