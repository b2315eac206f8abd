package repository

import (
	"context"
	"database/sql"
	"fmt"

	"academy-go/internal/models"
)

var ErrUserNotFound = fmt.Errorf("user not found")

const userColumns = `id, name, email, phone_number, password, role, academy_id, is_approved,
    business_license, is_kakao_linked, kakao_id, kakao_access_token, kakao_refresh_token,
    created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Password, &u.Role,
		&u.AcademyID, &u.IsApproved, &u.BusinessLicense, &u.IsKakaoLinked, &u.KakaoID,
		&u.KakaoAccessToken, &u.KakaoRefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error scanning user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UpdateTokens stores a refreshed Kakao token pair. The refresh token is
// overwritten only when the OAuth server rotated it; pass "" to keep the
// stored one.
func (r *UserRepository) UpdateTokens(ctx context.Context, userID int, accessToken, refreshToken string) error {
	var err error
	if refreshToken != "" {
		_, err = r.db.ExecContext(ctx,
			`UPDATE users SET kakao_access_token = $1, kakao_refresh_token = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
			accessToken, refreshToken, userID)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE users SET kakao_access_token = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
			accessToken, userID)
	}
	if err != nil {
		return fmt.Errorf("error updating kakao tokens: %w", err)
	}
	return nil
}

// ClearTokens drops the stored Kakao credentials and marks the user as
// unlinked. Called when the refresh token is confirmed invalid; the user
// has to link Kakao again before notifications resume.
func (r *UserRepository) ClearTokens(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET kakao_access_token = NULL, kakao_refresh_token = NULL, kakao_id = NULL,
            is_kakao_linked = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("error clearing kakao tokens: %w", err)
	}
	return nil
}

// LinkKakao stores the full linkage state after a social login.
func (r *UserRepository) LinkKakao(ctx context.Context, userID int, kakaoID, accessToken, refreshToken string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET kakao_id = $1, kakao_access_token = $2, kakao_refresh_token = $3,
            is_kakao_linked = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $4`,
		kakaoID, accessToken, refreshToken, userID)
	if err != nil {
		return fmt.Errorf("error linking kakao account: %w", err)
	}
	return nil
}
