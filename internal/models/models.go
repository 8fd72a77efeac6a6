package models

import "time"

// Votes
type VoteRequest struct {
	TrackID string `json:"trackId"`
	Action  string `json:"action"` // "like" or "dislike"
	Name    string `json:"name"`
}

type VoteResponse struct {
	NewCount int    `json:"newCount"`
	Warning  string `json:"warning,omitempty"`
}

// Catalog
type TrackResponse struct {
	TrackID    string `json:"trackId"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Popularity int    `json:"popularity"`
	Likes      int    `json:"likes"`
	Dislikes   int    `json:"dislikes"`
}

// Statistics
type StatEntry struct {
	TrackID string `json:"trackId"`
	Name    string `json:"name"`
	Artist  string `json:"artist"`
	Value   int    `json:"value"`
}

type StatsResponse struct {
	TopLiked    []StatEntry `json:"topLiked"`
	TopDisliked []StatEntry `json:"topDisliked"`
	TopPopular  []StatEntry `json:"topPopular"`
}

// Admin
type AdminLoginRequest struct {
	PIN string `json:"pin"`
}

type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ResetResponse struct {
	Warning string `json:"warning"`
}

// Roster
type UsersRequest struct {
	Names []string `json:"names"`
}

type UsersResponse struct {
	Names []string `json:"names"`
}

// Public configuration
type ConfigResponse struct {
	SpotifyClientID    string `json:"spotifyClientId,omitempty"`
	SpotifyPlaylistID  string `json:"spotifyPlaylistId,omitempty"`
	ResetEnabled       bool   `json:"resetEnabled"`
	RequireRosterVoter bool   `json:"requireRosterVoter"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
