package kakao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"academy-go/internal/models"

	"go.uber.org/zap"
)

// DefaultRetries is the retry budget for transient send failures. Auth
// refresh retries are not counted against it.
const DefaultRetries = 3

// TokenStore persists a user's Kakao token pair.
type TokenStore interface {
	// UpdateTokens stores a refreshed pair; refreshToken "" keeps the
	// stored one (the OAuth server rotates it only sometimes).
	UpdateTokens(ctx context.Context, userID int, accessToken, refreshToken string) error
	// ClearTokens drops the pair and the linkage flag. Only called when the
	// refresh token is confirmed invalid.
	ClearTokens(ctx context.Context, userID int) error
}

// Dispatcher delivers one templated message to one user, recovering from
// expired access tokens and retrying transient failures with linear
// backoff. Send never panics outward and always resolves to a bool.
type Dispatcher struct {
	client     *Client
	tokens     TokenStore
	logger     *zap.Logger
	adminKey   string
	testMode   bool
	production bool
	retries    int
	backoff    time.Duration
	sleep      func(time.Duration)
}

func NewDispatcher(client *Client, tokens TokenStore, adminKey string, testMode, production bool, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:     client,
		tokens:     tokens,
		logger:     logger,
		adminKey:   adminKey,
		testMode:   testMode,
		production: production,
		retries:    DefaultRetries,
		backoff:    time.Second,
		sleep:      time.Sleep,
	}
}

// SetRetryPolicy overrides the retry budget and backoff base. Mainly for
// tests; zero backoff disables waiting.
func (d *Dispatcher) SetRetryPolicy(retries int, backoff time.Duration) {
	d.retries = retries
	d.backoff = backoff
}

// Send delivers one templated message to the user. The user value is
// copied; refreshed tokens are persisted through the TokenStore, never
// written back to the caller's struct.
func (d *Dispatcher) Send(user models.User, templateID string, templateArgs map[string]string) bool {
	if templateID == "" {
		d.logger.Error("kakao template id not provided", zap.Int("user_id", user.ID))
		return false
	}

	// Simulation mode: log the would-be payload, skip the network.
	if d.testMode && !d.production {
		d.logger.Info("test mode: simulated kakao message",
			zap.Int("user_id", user.ID),
			zap.String("user_name", user.Name),
			zap.String("template_id", templateID),
			zap.Any("template_args", templateArgs))
		return true
	}

	if d.adminKey == "" {
		d.logger.Error("kakao admin key not configured", zap.String("template_id", templateID))
		return false
	}

	if !user.IsKakaoLinked {
		d.logger.Info("user is not linked to kakao",
			zap.Int("user_id", user.ID), zap.String("template_id", templateID))
		return false
	}

	ctx := context.Background()

	accessToken := user.KakaoAccessToken.String
	if accessToken == "" {
		d.logger.Info("user has no kakao access token, attempting refresh",
			zap.Int("user_id", user.ID), zap.String("user_name", user.Name))
		refreshed, ok := d.refresh(ctx, &user)
		if !ok {
			return false
		}
		accessToken = refreshed
	}

	retries := d.retries
	attempt := 0
	authRetried := false
	for {
		attempt++
		err := d.client.SendMemo(ctx, accessToken, templateID, templateArgs)
		if err == nil {
			d.logger.Info("kakao message sent",
				zap.Int("user_id", user.ID),
				zap.String("user_name", user.Name),
				zap.String("template_id", templateID))
			return true
		}

		d.logger.Error("kakao message send failed",
			zap.Int("user_id", user.ID),
			zap.String("user_name", user.Name),
			zap.String("template_id", templateID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		// Expired access token: one refresh-and-retry cycle, not counted
		// against the retry budget. A failed refresh falls through to the
		// generic retry path.
		if errors.Is(err, ErrUnauthorized) && !authRetried {
			if refreshed, ok := d.refresh(ctx, &user); ok {
				accessToken = refreshed
				authRetried = true
				continue
			}
		}

		if retries > 0 {
			d.sleep(d.backoff * time.Duration(attempt))
			retries--
			continue
		}
		return false
	}
}

// refresh exchanges the user's refresh token for a new access token and
// persists the result exactly once. On a confirmed-invalid refresh token
// the stored pair is cleared so the UI can prompt re-linkage; transient
// failures leave the stored tokens alone.
func (d *Dispatcher) refresh(ctx context.Context, user *models.User) (string, bool) {
	if user.KakaoRefreshToken.String == "" {
		d.logger.Error("cannot refresh kakao token: no refresh token stored",
			zap.Int("user_id", user.ID))
		return "", false
	}

	pair, err := d.client.RefreshToken(ctx, user.KakaoRefreshToken.String)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			d.logger.Error("kakao refresh token invalid, clearing linkage",
				zap.Int("user_id", user.ID), zap.String("user_name", user.Name))
			if cerr := d.tokens.ClearTokens(ctx, user.ID); cerr != nil {
				d.logger.Error("failed to clear kakao tokens",
					zap.Int("user_id", user.ID), zap.Error(cerr))
			}
			user.IsKakaoLinked = false
			user.KakaoAccessToken = sql.NullString{}
			user.KakaoRefreshToken = sql.NullString{}
			return "", false
		}
		d.logger.Error("kakao token refresh failed",
			zap.Int("user_id", user.ID), zap.Error(err))
		return "", false
	}

	if err := d.tokens.UpdateTokens(ctx, user.ID, pair.AccessToken, pair.RefreshToken); err != nil {
		d.logger.Error("failed to persist refreshed kakao token",
			zap.Int("user_id", user.ID), zap.Error(err))
	}

	user.KakaoAccessToken = sql.NullString{String: pair.AccessToken, Valid: true}
	if pair.RefreshToken != "" {
		user.KakaoRefreshToken = sql.NullString{String: pair.RefreshToken, Valid: true}
	}

	d.logger.Info("kakao access token refreshed",
		zap.Int("user_id", user.ID), zap.String("user_name", user.Name))
	return pair.AccessToken, true
}
