package auth

import (
	"strconv"

	"golang.org/x/oauth2"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scope requested for every authorization (Strava uses comma-separated scopes)
const Scope = "read,activity:read_all"

// Endpoint is the Strava OAuth endpoint. Client credentials travel in the
// request body, which is what Strava expects.
var Endpoint = oauth2.Endpoint{
	AuthURL:   AuthURL,
	TokenURL:  TokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// newOAuthConfig creates an oauth2.Config for one client
func newOAuthConfig(endpoint oauth2.Endpoint, clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{Scope},
	}
}

// ExtractAthleteID extracts the athlete ID from the token extras.
// Strava includes athlete info in the authorization-code response.
func ExtractAthleteID(token *oauth2.Token) int64 {
	if athlete, ok := token.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			return int64(id)
		}
	}
	return 0
}

// expiresAtMillis returns the token expiry in epoch milliseconds. Strava
// reports expires_at in seconds; the parsed Expiry is the fallback.
func expiresAtMillis(token *oauth2.Token) int64 {
	switch v := token.Extra("expires_at").(type) {
	case float64:
		return int64(v) * 1000
	case string:
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return secs * 1000
		}
	}
	if !token.Expiry.IsZero() {
		return token.Expiry.UnixMilli()
	}
	return 0
}

// grantedScope returns the scope reported with the token, if any.
func grantedScope(token *oauth2.Token) string {
	s, _ := token.Extra("scope").(string)
	return s
}
