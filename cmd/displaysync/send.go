package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var sendOpts struct {
	file string

	metaType    string
	title       string
	artist      string
	album       string
	artworkURL  string
	durationMS  int
	header      string
	body        string
	imageURL    string
	description string

	messageID       string
	dialogRequestID string
	serviceID       string
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Push a display template to the daemon",
	Long: `Push a display template to the daemon.

The template metadata comes either from a YAML file (--file) or from the
typed flags below. Message and dialog-request identifiers are generated as
ULIDs when not given, so a bare invocation starts a fresh synchronization
group.

Examples:

  displaysync send --title "Blue in Green" --artist "Miles Davis"
  displaysync send --type text --header "Weather" --body "Light rain."
  displaysync send --file nowplaying.yaml`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendOpts.file, "file", "f", "",
		"YAML file with template metadata")

	sendCmd.Flags().StringVar(&sendOpts.metaType, "type", "audio",
		"Template type (audio, text, image)")
	sendCmd.Flags().StringVar(&sendOpts.title, "title", "", "Track title (audio)")
	sendCmd.Flags().StringVar(&sendOpts.artist, "artist", "", "Artist (audio)")
	sendCmd.Flags().StringVar(&sendOpts.album, "album", "", "Album (audio)")
	sendCmd.Flags().StringVar(&sendOpts.artworkURL, "artwork-url", "", "Artwork URL (audio)")
	sendCmd.Flags().IntVar(&sendOpts.durationMS, "duration-ms", 0, "Track duration in ms (audio)")
	sendCmd.Flags().StringVar(&sendOpts.header, "header", "", "Header (text, image)")
	sendCmd.Flags().StringVar(&sendOpts.body, "body", "", "Body (text)")
	sendCmd.Flags().StringVar(&sendOpts.imageURL, "image-url", "", "Image URL (image)")
	sendCmd.Flags().StringVar(&sendOpts.description, "description", "", "Description (image)")

	sendCmd.Flags().StringVar(&sendOpts.messageID, "message-id", "",
		"Message id (generated when empty)")
	sendCmd.Flags().StringVar(&sendOpts.dialogRequestID, "dialog-request-id", "",
		"Dialog request id (generated when empty)")
	sendCmd.Flags().StringVar(&sendOpts.serviceID, "service-id", "",
		"Play service id (optional)")
}

func runSend(cmd *cobra.Command, args []string) error {
	meta, err := buildMetadata()
	if err != nil {
		return err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	messageID := sendOpts.messageID
	if messageID == "" {
		messageID = ulid.Make().String()
	}
	dialogRequestID := sendOpts.dialogRequestID
	if dialogRequestID == "" {
		dialogRequestID = ulid.Make().String()
	}

	if err := client.Display(string(metaJSON), messageID, dialogRequestID, sendOpts.serviceID); err != nil {
		return err
	}

	fmt.Printf("sent template %s (dialog %s)\n", messageID, dialogRequestID)
	return nil
}

// buildMetadata assembles the loosely-typed metadata map from the file or
// the typed flags.
func buildMetadata() (map[string]any, error) {
	if sendOpts.file != "" {
		data, err := os.ReadFile(sendOpts.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata file: %w", err)
		}
		var meta map[string]any
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("failed to parse metadata file: %w", err)
		}
		return meta, nil
	}

	meta := map[string]any{"type": sendOpts.metaType}
	switch strings.ToLower(sendOpts.metaType) {
	case "audio":
		meta["title"] = sendOpts.title
		if sendOpts.artist != "" {
			meta["artist"] = sendOpts.artist
		}
		if sendOpts.album != "" {
			meta["album"] = sendOpts.album
		}
		if sendOpts.artworkURL != "" {
			meta["artwork_url"] = sendOpts.artworkURL
		}
		if sendOpts.durationMS > 0 {
			meta["duration_ms"] = sendOpts.durationMS
		}
	case "text":
		meta["header"] = sendOpts.header
		if sendOpts.body != "" {
			meta["body"] = sendOpts.body
		}
	case "image":
		meta["image_url"] = sendOpts.imageURL
		if sendOpts.header != "" {
			meta["header"] = sendOpts.header
		}
		if sendOpts.description != "" {
			meta["description"] = sendOpts.description
		}
	}
	return meta, nil
}
