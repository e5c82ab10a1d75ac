package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var ErrNoIDToken = errors.New("token response did not include an id_token")

// Exchanger trades authorization codes from the popup sign in flow for ID
// tokens.
type Exchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewExchanger creates an exchanger. The redirect URL is "postmessage" for
// codes obtained by the Google Identity Services popup.
func NewExchanger(clientID, clientSecret, redirectURL string) (*Exchanger, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("client ID and client secret are required")
	}
	if redirectURL == "" {
		redirectURL = "postmessage"
	}

	return &Exchanger{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
	}, nil
}

// WithEndpoint overrides the token endpoint.
func (e *Exchanger) WithEndpoint(endpoint oauth2.Endpoint) *Exchanger {
	e.config.Endpoint = endpoint
	return e
}

// WithHTTPClient sets the client used for the token request.
func (e *Exchanger) WithHTTPClient(client *http.Client) *Exchanger {
	e.httpClient = client
	return e
}

// Exchange redeems code and returns the ID token from the response.
func (e *Exchanger) Exchange(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrNoIDToken
	}
	return idToken, nil
}
