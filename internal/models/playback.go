package models

// Device is a playback target reported by the remote.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	VolumePercent int    `json:"volume_percent"`
}

// Usable reports whether commands can be addressed to the device.
func (d Device) Usable() bool {
	return d.ID != "" && !d.IsRestricted
}

// SelectDevice picks the active usable device, falling back to the first usable one.
// It returns nil when no device can be addressed.
func SelectDevice(devices []Device) *Device {
	var fallback *Device
	for i := range devices {
		d := &devices[i]
		if !d.Usable() {
			continue
		}
		if d.IsActive {
			return d
		}
		if fallback == nil {
			fallback = d
		}
	}
	return fallback
}

// PlaybackState is what the remote reports as currently playing.
//
// A nil *PlaybackState means nothing is loaded on any device.
type PlaybackState struct {
	TrackURI   string
	Name       string
	Artist     string
	Album      string
	ImageURL   string
	ProgressMS int
	DurationMS int
	IsPlaying  bool
	DeviceID   string
}

// NowPlaying converts the state into the snapshot stored on a run.
func (p *PlaybackState) NowPlaying() *NowPlaying {
	if p == nil {
		return nil
	}
	return &NowPlaying{
		URI:        p.TrackURI,
		Name:       p.Name,
		Artist:     p.Artist,
		Album:      p.Album,
		ImageURL:   p.ImageURL,
		ProgressMS: p.ProgressMS,
		DurationMS: p.DurationMS,
		IsPlaying:  p.IsPlaying,
	}
}
