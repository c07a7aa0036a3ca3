package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"robohub/internal/domain"
)

const userCols = `id,email,password,api_key_name,api_key,proxy_url,proxy_username,proxy_password,google_sheets_email,google_sheet_id,google_access_token,google_refresh_token`

func (s *SQLite) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if err := u.Validate(); err != nil {
		return domain.User{}, err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (email,password,api_key_name,api_key,proxy_url,proxy_username,proxy_password,google_sheets_email,google_sheet_id,google_access_token,google_refresh_token)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.Email, u.Password,
		nullStr(u.APIKeyName), nullStr(u.APIKey),
		nullStr(u.ProxyURL), nullStr(u.ProxyUsername), nullStr(u.ProxyPassword),
		nullStr(u.GoogleSheetsEmail), nullStr(u.GoogleSheetID),
		nullStr(u.GoogleAccessToken), nullStr(u.GoogleRefreshToken))
	if err != nil {
		return domain.User{}, err
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func (s *SQLite) GetUser(ctx context.Context, id int64) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, err
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	return u, err
}

// UpdateUserAPIKey sets or clears (empty name and key) the user's API
// key columns.
func (s *SQLite) UpdateUserAPIKey(ctx context.Context, userID int64, name, key string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET api_key_name=?, api_key=? WHERE id=?`,
		nullStr(name), nullStr(key), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// UpdateUserProxy replaces the proxy credential triple. The pairing
// invariant (username requires password) is enforced before the write.
func (s *SQLite) UpdateUserProxy(ctx context.Context, userID int64, proxyURL, username, password string) error {
	if strings.TrimSpace(username) != "" && password == "" {
		return domain.Invalid("proxy_password", "required when proxy_username is set")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET proxy_url=?, proxy_username=?, proxy_password=? WHERE id=?`,
		nullStr(proxyURL), nullStr(username), nullStr(password), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u          domain.User
		keyName    sql.NullString
		key        sql.NullString
		proxyURL   sql.NullString
		proxyUser  sql.NullString
		proxyPass  sql.NullString
		sheetEmail sql.NullString
		sheetID    sql.NullString
		accessTok  sql.NullString
		refreshTok sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Password, &keyName, &key,
		&proxyURL, &proxyUser, &proxyPass,
		&sheetEmail, &sheetID, &accessTok, &refreshTok)
	if err != nil {
		return domain.User{}, err
	}
	u.APIKeyName = keyName.String
	u.APIKey = key.String
	u.ProxyURL = proxyURL.String
	u.ProxyUsername = proxyUser.String
	u.ProxyPassword = proxyPass.String
	u.GoogleSheetsEmail = sheetEmail.String
	u.GoogleSheetID = sheetID.String
	u.GoogleAccessToken = accessTok.String
	u.GoogleRefreshToken = refreshTok.String
	return u, nil
}
