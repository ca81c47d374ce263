package spotify

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidTrackURI is returned by ParseTrackURI for anything that does not name a track.
var ErrInvalidTrackURI = errors.New("not a Spotify track URI")

const trackURIPrefix = "spotify:track:"

// Devices lists the user's available Spotify Connect devices.
func (c *Client) Devices(ctx context.Context, accessToken string) (DeviceList, error) {
	cl := c.begin(accessToken)

	var list DeviceList
	if err := cl.getJSON(ctx, "me/player/devices", &list); err != nil {
		return DeviceList{}, cl.fail("list devices", err)
	}

	if list.Devices == nil {
		list.Devices = []Device{}
	}
	return list, nil
}

// Queue appends a track to the user's playback queue.
func (c *Client) Queue(ctx context.Context, accessToken string, trackID ID) error {
	cl := c.begin(accessToken)

	if err := cl.api.QueueSong(ctx, trackID); err != nil {
		return cl.fail("queue", err)
	}
	return nil
}

// ParseTrackURI extracts the track ID from a spotify:track: URI, an
// open.spotify.com track link, or a bare ID.
func ParseTrackURI(s string) (ID, error) {
	s = strings.TrimSpace(s)

	var id string
	switch {
	case strings.HasPrefix(s, trackURIPrefix):
		id = strings.TrimPrefix(s, trackURIPrefix)
	case strings.HasPrefix(s, "https://open.spotify.com/"):
		u, err := url.Parse(s)
		if err != nil {
			return "", ErrInvalidTrackURI
		}
		rest, ok := strings.CutPrefix(u.Path, "/track/")
		if !ok {
			return "", ErrInvalidTrackURI
		}
		id = rest
	case !strings.Contains(s, ":"):
		id = s
	}

	if !isBase62(id) {
		return "", ErrInvalidTrackURI
	}
	return ID(id), nil
}

func isBase62(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
