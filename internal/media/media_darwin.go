//go:build darwin

package media

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/nowcast-run/agent/internal/logging"
)

var log = logging.L("media")

const perlBin = "/usr/bin/perl"

// darwinSource spawns the bundled mediaremote-adapter.pl helper against
// MediaRemoteAdapter.framework and parses its newline-delimited JSON.
type darwinSource struct {
	scriptPath    string
	frameworkPath string
}

// NewSource returns the macOS media.Source. scriptPath and
// frameworkPath locate the bundled helper and private-framework shim.
func NewSource(scriptPath, frameworkPath string) Source {
	return &darwinSource{scriptPath: scriptPath, frameworkPath: frameworkPath}
}

// rawNowPlaying mirrors the helper's camelCase JSON schema exactly.
type rawNowPlaying struct {
	BundleIdentifier string   `json:"bundleIdentifier"`
	Playing          bool     `json:"playing"`
	Title            string   `json:"title"`
	Artist           *string  `json:"artist"`
	Album            *string  `json:"album"`
	Duration         *float32 `json:"duration"`
	ElapsedTime      *float32 `json:"elapsedTime"`
	Timestamp        *string  `json:"timestamp"`
	ArtworkMimeType  *string  `json:"artworkMimeType"`
	ArtworkData      *string `json:"artworkData"`
	ChapterNumber    *int     `json:"chapterNumber"`
}

type streamPayload struct {
	Diff    bool            `json:"diff"`
	Payload json.RawMessage `json:"payload"`
}

func (s *darwinSource) Get(ctx context.Context) (*NowPlaying, error) {
	cmd := exec.CommandContext(ctx, perlBin, s.scriptPath, s.frameworkPath, "get")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("run mediaremote helper: %w", err)
	}

	var raw rawNowPlaying
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse mediaremote output: %w", err)
	}
	return normalize(raw), nil
}

func (s *darwinSource) Subscribe(ctx context.Context) (<-chan *NowPlaying, error) {
	cmd := exec.CommandContext(ctx, perlBin, s.scriptPath, s.frameworkPath, "stream", "--no-diff")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open mediaremote stream pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediaremote stream: %w", err)
	}

	out := make(chan *NowPlaying, 4)

	go func() {
		defer close(out)
		defer cmd.Wait()

		scanner := bufio.NewScanner(stdout)
		// Artwork payloads are base64 and can be large; grow beyond the
		// scanner's 64KB default line limit.
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 8*1024*1024)

		for scanner.Scan() {
			var payload streamPayload
			if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
				log.Warn("discarding malformed stream line", logging.KeyError, err)
				continue
			}

			var raw rawNowPlaying
			if err := json.Unmarshal(payload.Payload, &raw); err != nil {
				log.Warn("discarding malformed stream payload", logging.KeyError, err)
				continue
			}

			select {
			case out <- normalize(raw):
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error("mediaremote stream scanner failed", logging.KeyError, err)
		}
	}()

	return out, nil
}

func normalize(raw rawNowPlaying) *NowPlaying {
	if !raw.Playing {
		return nil
	}
	if raw.Artist == nil || raw.ElapsedTime == nil || raw.Duration == nil ||
		raw.Timestamp == nil || raw.ArtworkMimeType == nil || raw.ArtworkData == nil {
		return nil
	}

	ts, err := time.Parse(time.RFC3339Nano, *raw.Timestamp)
	if err != nil {
		log.Warn("discarding snapshot with unparseable timestamp", logging.KeyError, err)
		return nil
	}

	start := ts.Add(-time.Duration(*raw.ElapsedTime * float32(time.Second)))
	end := start.Add(time.Duration(*raw.Duration * float32(time.Second)))

	artwork, err := base64.StdEncoding.DecodeString(*raw.ArtworkData)
	if err != nil {
		log.Warn("discarding snapshot with unparseable artwork", logging.KeyError, err)
		return nil
	}

	return &NowPlaying{
		Title:        raw.Title,
		Artist:       *raw.Artist,
		Start:        start.UTC(),
		End:          end.UTC(),
		ArtworkMIME:  *raw.ArtworkMimeType,
		ArtworkBytes: artwork,
		ArtworkHash:  hashArtwork(artwork),
	}
}
