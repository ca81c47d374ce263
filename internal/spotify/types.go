package spotify

import (
	"encoding/json"

	"github.com/zmb3/spotify/v2"
)

// Track is a full Spotify track object, serialized with the Web API field names.
type Track = spotify.FullTrack

// ID is a base-62 Spotify identifier.
type ID = spotify.ID

// Device is a Spotify Connect playback device.
// A decoded Device re-encodes to the exact object Spotify sent, including
// fields PlayerDevice does not model (is_private_session, supports_volume).
type Device struct {
	spotify.PlayerDevice
	raw json.RawMessage
}

func (d *Device) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &d.PlayerDevice); err != nil {
		return err
	}
	d.raw = append(d.raw[:0], b...)
	return nil
}

func (d Device) MarshalJSON() ([]byte, error) {
	if d.raw != nil {
		return d.raw, nil
	}
	return json.Marshal(d.PlayerDevice)
}

// DeviceList mirrors the payload of GET /me/player/devices.
type DeviceList struct {
	Devices []Device `json:"devices"`
}
