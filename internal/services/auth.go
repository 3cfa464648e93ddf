package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
)

const (
	authLoginPath = "/auth/login"
	authUsersPath = "/auth/users"
)

// UserItem is a user directory entry as the backend serializes it.
type UserItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

// User converts the wire item to a [models.User].
func (u UserItem) User() models.User {
	return models.User{ID: models.UserID(u.ID), Name: u.Name, Nickname: u.Nickname}
}

// ItemFromUser is the inverse of [UserItem.User].
func ItemFromUser(u models.User) UserItem {
	return UserItem{ID: int64(u.ID), Name: u.Name, Nickname: u.Nickname}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// LoginResponse is the token envelope form of a login answer, the one the development server produces.
type LoginResponse struct {
	AccessToken string   `json:"access_token,omitempty"`
	TokenType   string   `json:"token_type,omitempty"`
	User        UserItem `json:"user"`
}

// loginRejection is {"success": false, "message": ...}.
type loginRejection struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// userEnvelope is {"success": true, "user": {...}}, success being optional.
type userEnvelope struct {
	Success *bool     `json:"success"`
	Message string    `json:"message"`
	User    *UserItem `json:"user"`
}

// DecodeLoginResponse turns a login answer into a session.
//
// The shape is picked by its tag field and must then match exactly, unknown keys included:
//   - token envelope, tagged by access_token: {"access_token", "token_type", "user": {...}}
//   - user envelope, tagged by user: {"success": true, "message", "user": {...}}
//   - rejection, tagged by success: {"success": false, "message" | "detail"} yields [shared.ErrAuthFailed]
//   - flat user, tagged by id: {"id", "name", "nickname"}
//
// Anything else yields [shared.ErrUnrecognizedResponse].
func DecodeLoginResponse(data []byte) (models.Session, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return models.Session{}, fmt.Errorf("%w: login: %w", shared.ErrUnrecognizedResponse, err)
	}

	has := func(k string) bool { _, ok := keys[k]; return ok }
	switch {
	case has("access_token"):
		var env LoginResponse
		if err := decodeStrict(data, &env); err != nil {
			return models.Session{}, fmt.Errorf("%w: token envelope: %w", shared.ErrUnrecognizedResponse, err)
		}
		if env.AccessToken == "" || env.User.ID == 0 {
			return models.Session{}, fmt.Errorf("%w: token envelope without a token or user", shared.ErrUnrecognizedResponse)
		}
		tokenType := env.TokenType
		if tokenType == "" {
			tokenType = "bearer"
		}
		return models.Session{User: env.User.User(), AccessToken: env.AccessToken, TokenType: tokenType}, nil

	case has("user"):
		var env userEnvelope
		if err := decodeStrict(data, &env); err != nil {
			return models.Session{}, fmt.Errorf("%w: user envelope: %w", shared.ErrUnrecognizedResponse, err)
		}
		if env.Success != nil && !*env.Success {
			return models.Session{}, rejected(env.Message, "")
		}
		if env.User == nil || env.User.ID == 0 {
			return models.Session{}, fmt.Errorf("%w: user envelope without an id", shared.ErrUnrecognizedResponse)
		}
		return models.Session{User: env.User.User()}, nil

	case has("success"):
		var rej loginRejection
		if err := decodeStrict(data, &rej); err != nil || rej.Success {
			return models.Session{}, fmt.Errorf("%w: success flag without a user", shared.ErrUnrecognizedResponse)
		}
		return models.Session{}, rejected(rej.Message, rej.Detail)

	case has("id"):
		var flat UserItem
		if err := decodeStrict(data, &flat); err != nil {
			return models.Session{}, fmt.Errorf("%w: flat user: %w", shared.ErrUnrecognizedResponse, err)
		}
		if flat.ID == 0 {
			return models.Session{}, fmt.Errorf("%w: flat user without an id", shared.ErrUnrecognizedResponse)
		}
		return models.Session{User: flat.User()}, nil
	}

	return models.Session{}, shared.ErrUnrecognizedResponse
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func rejected(message, detail string) error {
	if message == "" {
		message = detail
	}
	if message == "" {
		return shared.ErrAuthFailed
	}
	return fmt.Errorf("%w: %s", shared.ErrAuthFailed, message)
}

// Login authenticates with nickname and password via POST /auth/login.
func (c *Client) Login(ctx context.Context, nickname, password string) (models.Session, error) {
	if nickname == "" || password == "" {
		return models.Session{}, fmt.Errorf("%w: nickname and password are required", shared.ErrMissingArgument)
	}

	var raw json.RawMessage
	err := c.doRequest(ctx, http.MethodPost, authLoginPath, nil, LoginRequest{Nickname: nickname, Password: password}, &raw)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return models.Session{}, fmt.Errorf("%w: %s", shared.ErrAuthFailed, apiErr.Detail)
		}
		return models.Session{}, err
	}

	session, err := DecodeLoginResponse(raw)
	if err != nil {
		return models.Session{}, err
	}
	session.CreatedAt = time.Now().UTC()

	c.logger.Info("logged in", "user_id", session.User.ID, "nickname", session.User.Nickname)
	return session, nil
}

// ListUsers fetches the user directory via GET /auth/users.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var items []UserItem
	if err := c.doRequest(ctx, http.MethodGet, authUsersPath, nil, nil, &items); err != nil {
		return nil, err
	}

	users := make([]models.User, len(items))
	for i, item := range items {
		users[i] = item.User()
	}
	return users, nil
}
