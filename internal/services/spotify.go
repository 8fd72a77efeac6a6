package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/trackvote/backend/internal/catalog"
	"github.com/trackvote/backend/internal/retry"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"

	playlistFields = "items(track(id,name,popularity,artists(name))),next"
)

// StatusError is returned when Spotify answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify request failed with status %d: %s", e.StatusCode, e.Body)
}

// SpotifyService reads playlist metadata using the client credentials flow.
type SpotifyService struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	tokenURL     string
	apiURL       string
	token        string
	tokenExpiry  time.Time
	mu           sync.RWMutex
}

type spotifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Popularity int             `json:"popularity"`
	Artists    []spotifyArtist `json:"artists"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyPlaylistPage struct {
	Items []struct {
		Track *spotifyTrack `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

func NewSpotifyService(clientID, clientSecret string) *SpotifyService {
	return &SpotifyService{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokenURL: spotifyTokenURL,
		apiURL:   spotifyAPIURL,
	}
}

func (s *SpotifyService) getAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp spotifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	s.token = tokenResp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return s.token, nil
}

// PlaylistItems returns every track of the playlist in playlist order,
// following pagination. Local files and unavailable tracks are skipped.
func (s *SpotifyService) PlaylistItems(ctx context.Context, playlistID string) ([]catalog.Item, error) {
	if playlistID == "" {
		return nil, errors.New("playlist ID is required")
	}

	token, err := s.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	pageURL := fmt.Sprintf("%s/playlists/%s/tracks?limit=100&fields=%s",
		s.apiURL, url.PathEscape(playlistID), url.QueryEscape(playlistFields))

	var items []catalog.Item
	for pageURL != "" {
		page, err := s.fetchPage(ctx, token, pageURL)
		if err != nil {
			return nil, err
		}
		for _, entry := range page.Items {
			t := entry.Track
			if t == nil || t.ID == "" {
				continue
			}
			var artist string
			if len(t.Artists) > 0 {
				artist = t.Artists[0].Name
			}
			items = append(items, catalog.Item{ID: t.ID, Name: t.Name, Artist: artist, Popularity: t.Popularity})
		}
		pageURL = page.Next
	}

	return items, nil
}

func (s *SpotifyService) fetchPage(ctx context.Context, token, pageURL string) (*spotifyPlaylistPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("playlist request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var page spotifyPlaylistPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode playlist response: %w", err)
	}
	return &page, nil
}

// ClassifySpotifyError tells retry.Do how to treat a Spotify failure.
// Rate limiting waits longer, other client errors are permanent and
// everything else (5xx, network) is retried.
func ClassifySpotifyError(err error) retry.Action {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return retry.Stop
		}
	}
	return retry.Retry
}
