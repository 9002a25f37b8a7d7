package presence

import (
	"fmt"
	"strings"

	"github.com/nowcast-run/agent/internal/media"
)

// ActivityTypeListening is the only activity type this agent emits.
const ActivityTypeListening = 2

// Timestamps carries millisecond-since-epoch bounds for the activity.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets carries image/text references for the presence card. Only
// LargeImage is populated by this agent; the remaining fields exist so
// the wire shape stays forward-compatible with the presence server's
// full Activity struct (original_source's rpc.rs carries all of them).
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	LargeURL   string `json:"large_url,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// ActivityFrame is the "activity" object sent in a SET_ACTIVITY
// command. Name, URL, CreatedAt and ApplicationID exist for wire
// forward-compatibility but are left zero by BuildActivity, which only
// populates what a now-playing observation can supply (plus the fixed
// Type and StatusDisplayType).
type ActivityFrame struct {
	Name              string      `json:"name,omitempty"`
	Type              int         `json:"type"`
	URL               string      `json:"url,omitempty"`
	CreatedAt         int64       `json:"created_at,omitempty"`
	ApplicationID     string      `json:"application_id,omitempty"`
	Details           string      `json:"details,omitempty"`
	State             string      `json:"state,omitempty"`
	Timestamps        *Timestamps `json:"timestamps,omitempty"`
	Assets            *Assets     `json:"assets,omitempty"`
	StatusDisplayType int         `json:"status_display_type"`
}

// BuildActivity derives the wire activity from a NowPlaying snapshot
// and the artwork side-channel's current public URL. publicURL may be
// empty if the tunnel hasn't announced its address yet; in that case
// the frame is sent without a large_image asset.
func BuildActivity(np *media.NowPlaying, publicURL string) *ActivityFrame {
	if np == nil {
		return nil
	}
	frame := &ActivityFrame{
		Type:  ActivityTypeListening,
		Details: np.Title,
		State:   np.Artist,
		Timestamps: &Timestamps{
			Start: np.Start.UnixMilli(),
			End:   np.End.UnixMilli(),
		},
		StatusDisplayType: 1,
	}
	if publicURL != "" && np.ArtworkHash != "" {
		frame.Assets = &Assets{
			LargeImage: fmt.Sprintf("%s/%s", strings.TrimSuffix(publicURL, "/"), np.ArtworkHash),
		}
	}
	return frame
}
