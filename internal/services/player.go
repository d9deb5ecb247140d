package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/trueshuffle/internal/models"
	"github.com/desertthunder/trueshuffle/internal/transport"
)

// SpotifyPlayer issues playback commands against the Spotify Connect player API.
type SpotifyPlayer struct {
	client *SpotifyClient
}

// NewSpotifyPlayer creates a [transport.Executor] backed by client.
func NewSpotifyPlayer(client *SpotifyClient) *SpotifyPlayer {
	return &SpotifyPlayer{client: client}
}

// Execute implements [transport.Executor].
func (p *SpotifyPlayer) Execute(ctx context.Context, cmd transport.Command) (*transport.Response, error) {
	switch cmd.Kind {
	case transport.GetDevices:
		devices, err := p.devices(ctx, cmd.UserID)
		if err != nil {
			return nil, err
		}
		return &transport.Response{Devices: devices}, nil
	case transport.StartPlayback:
		return &transport.Response{}, p.play(ctx, cmd)
	case transport.Enqueue:
		return &transport.Response{}, p.enqueue(ctx, cmd)
	case transport.GetPlaybackState:
		state, err := p.state(ctx, cmd.UserID)
		if err != nil {
			return nil, err
		}
		return &transport.Response{State: state}, nil
	default:
		return nil, fmt.Errorf("%w: command %s", transport.ErrClientError, cmd.Kind)
	}
}

func (p *SpotifyPlayer) devices(ctx context.Context, userID string) ([]models.Device, error) {
	var response struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if _, err := p.client.doRequest(ctx, userID, http.MethodGet, "/me/player/devices", nil, nil, &response); err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(response.Devices))
	for _, d := range response.Devices {
		devices = append(devices, d.toModel())
	}
	return devices, nil
}

func (p *SpotifyPlayer) play(ctx context.Context, cmd transport.Command) error {
	body := map[string]any{
		"uris":        []string{cmd.TrackURI},
		"position_ms": 0,
	}
	_, err := p.client.doRequest(ctx, cmd.UserID, http.MethodPut, "/me/player/play", deviceQuery(cmd.DeviceID), body, nil)
	return err
}

func (p *SpotifyPlayer) enqueue(ctx context.Context, cmd transport.Command) error {
	query := deviceQuery(cmd.DeviceID)
	query.Set("uri", cmd.TrackURI)
	_, err := p.client.doRequest(ctx, cmd.UserID, http.MethodPost, "/me/player/queue", query, nil, nil)
	return err
}

// state returns nil when the reply is 204, i.e. nothing is loaded on any device.
func (p *SpotifyPlayer) state(ctx context.Context, userID string) (*models.PlaybackState, error) {
	var response SpotifyPlayerState
	status, err := p.client.doRequest(ctx, userID, http.MethodGet, "/me/player", nil, nil, &response)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}

	state := &models.PlaybackState{
		ProgressMS: response.ProgressMS,
		IsPlaying:  response.IsPlaying,
	}
	if response.Device.ID != nil {
		state.DeviceID = *response.Device.ID
	}
	if item := response.Item; item != nil {
		state.TrackURI = item.URI
		state.Name = item.Name
		state.Artist = artistNames(item.Artists)
		state.Album = item.Album.Name
		state.ImageURL = firstImage(item.Album.Images)
		state.DurationMS = item.DurationMS
	}
	return state, nil
}

func (d SpotifyDevice) toModel() models.Device {
	device := models.Device{
		Name:         d.Name,
		Type:         d.Type,
		IsActive:     d.IsActive,
		IsRestricted: d.IsRestricted,
	}
	if d.ID != nil {
		device.ID = *d.ID
	}
	if d.VolumePercent != nil {
		device.VolumePercent = *d.VolumePercent
	}
	return device
}

func deviceQuery(deviceID string) url.Values {
	query := url.Values{}
	if deviceID != "" {
		query.Set("device_id", deviceID)
	}
	return query
}
