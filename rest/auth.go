package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// LoginPath is the login endpoint below the API base URL.
const LoginPath = "auth/login"

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token. The API answers with
// {"data": {"token": "..."}}.
func Login(ctx context.Context, baseURL string, credentials Credentials, options ...func(*Client) error) (string, error) {
	client, err := New(baseURL, LoginPath, options...)
	if err != nil {
		return "", err
	}

	envelope, err := client.do(ctx, http.MethodPost, client.collectionURL, credentials, true)
	if err != nil {
		return "", fmt.Errorf("logging in as %s : %w", credentials.Username, err)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return "", fmt.Errorf("decoding login response : %w", err)
	}
	if payload.Token == "" {
		return "", errors.New("login response did not include a token")
	}
	return payload.Token, nil
}
