// Package kakao talks to the Kakao OAuth and KakaoTalk message APIs and
// delivers templated task notifications to linked users.
package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultTokenURL = "https://kauth.kakao.com/oauth/token"
	defaultSendURL  = "https://kapi.kakao.com/v2/api/talk/memo/default/send"
	defaultUserURL  = "https://kapi.kakao.com/v2/user/me"
)

var (
	// ErrInvalidRefreshToken means the stored refresh token is expired or
	// revoked. The caller must clear the stored pair; the user has to link
	// Kakao again.
	ErrInvalidRefreshToken = errors.New("kakao: refresh token expired or invalid")

	// ErrUnauthorized is returned when the message API rejects the access
	// token (HTTP 401). Recoverable through a token refresh.
	ErrUnauthorized = errors.New("kakao: access token rejected")
)

// APIError carries the status and error body of a failed Kakao API call.
type APIError struct {
	Status int
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kakao: api error (status %d, code %d): %s", e.Status, e.Code, e.Msg)
}

// TokenPair is the result of a token exchange. RefreshToken is empty when
// the OAuth server did not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Profile is the subset of the Kakao user-info response the app needs.
type Profile struct {
	ID       string
	Email    string
	Nickname string
}

// Client is a thin HTTP client for the Kakao endpoints. It holds no user
// state; persistence of refreshed tokens is the caller's job.
type Client struct {
	HTTPClient   *http.Client
	ClientID     string
	ClientSecret string
	TokenURL     string
	SendURL      string
	UserURL      string
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		HTTPClient:   http.DefaultClient,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     defaultTokenURL,
		SendURL:      defaultSendURL,
		UserURL:      defaultUserURL,
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, bearer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.HTTPClient.Do(req)
}

// RefreshToken exchanges a refresh token for a fresh access token. An
// invalid_grant response maps to ErrInvalidRefreshToken; transport errors
// are returned as-is and must be treated as transient.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.ClientID)
	form.Set("refresh_token", refreshToken)
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}

	resp, err := c.postForm(ctx, c.TokenURL, form, "")
	if err != nil {
		return nil, fmt.Errorf("kakao: token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("kakao: invalid token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		if body.Error == "invalid_grant" {
			return nil, fmt.Errorf("%w (%s)", ErrInvalidRefreshToken, body.ErrorCode)
		}
		return nil, fmt.Errorf("kakao: token refresh rejected (status %d, error %q)", resp.StatusCode, body.Error)
	}

	return &TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}

// ExchangeCode trades a social-login authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.ClientID)
	form.Set("redirect_uri", redirectURI)
	form.Set("code", code)
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}

	resp, err := c.postForm(ctx, c.TokenURL, form, "")
	if err != nil {
		return nil, fmt.Errorf("kakao: code exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("kakao: invalid token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		return nil, fmt.Errorf("kakao: code exchange rejected (status %d, error %q)", resp.StatusCode, body.Error)
	}

	return &TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}

// UserInfo fetches the profile of the token owner.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kakao: user info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kakao: user info rejected (status %d)", resp.StatusCode)
	}

	var body struct {
		ID           json.Number `json:"id"`
		KakaoAccount struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname string `json:"nickname"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("kakao: invalid user info response: %w", err)
	}

	return &Profile{
		ID:       body.ID.String(),
		Email:    body.KakaoAccount.Email,
		Nickname: body.KakaoAccount.Profile.Nickname,
	}, nil
}

// SendMemo posts one templated message to the token owner's own KakaoTalk.
// Returns nil on HTTP 200, ErrUnauthorized on 401, *APIError otherwise.
func (c *Client) SendMemo(ctx context.Context, accessToken, templateID string, templateArgs map[string]string) error {
	argsJSON, err := json.Marshal(templateArgs)
	if err != nil {
		return fmt.Errorf("kakao: cannot encode template args: %w", err)
	}

	form := url.Values{}
	form.Set("template_id", templateID)
	form.Set("template_args", string(argsJSON))

	resp, err := c.postForm(ctx, c.SendURL, form, accessToken)
	if err != nil {
		return fmt.Errorf("kakao: send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w (template %s)", ErrUnauthorized, templateID)
	}

	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, apiErr)
	return apiErr
}
