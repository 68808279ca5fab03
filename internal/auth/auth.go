// Package auth manages the operator accounts allowed to administer the server and their bearer
// sessions.
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrOperatorExists     = errors.New("operator already exists")
)

const sessionTTL = 7 * 24 * time.Hour

type Service struct {
	db  *sql.DB
	now func() time.Time
}

type Operator struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// IssuerName attributes console commands to the operator.
func (o *Operator) IssuerName() string { return o.Username }

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// CreateOperator adds an operator account.
func (s *Service) CreateOperator(username, password string) (*Operator, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password required")
	}
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM operators WHERE username = ?", username).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%s: %w", username, ErrOperatorExists)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Exec("INSERT INTO operators (username, password_hash) VALUES (?, ?)", username, string(hash))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Operator{ID: id, Username: username}, nil
}

// EnsureDefaultOperator creates the operator if no operator exists yet.
func (s *Service) EnsureDefaultOperator(username, password string) error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM operators").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := s.CreateOperator(username, password)
	return err
}

func (s *Service) Login(username, password string) (string, error) {
	var id int64
	var hash string
	err := s.db.QueryRow("SELECT id, password_hash FROM operators WHERE username = ?", username).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	expires := s.now().Add(sessionTTL)
	_, err = s.db.Exec("INSERT INTO sessions (token, operator_id, expires_at) VALUES (?, ?, ?)", token, id, expires)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) ValidateSession(token string) (*Operator, error) {
	var op Operator
	var expiresAt time.Time
	err := s.db.QueryRow(`
		SELECT o.id, o.username, s.expires_at
		FROM sessions s JOIN operators o ON s.operator_id = o.id
		WHERE s.token = ?
	`, token).Scan(&op.ID, &op.Username, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if s.now().After(expiresAt) {
		s.db.Exec("DELETE FROM sessions WHERE token = ?", token)
		return nil, ErrSessionExpired
	}
	return &op, nil
}

func (s *Service) Logout(token string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
