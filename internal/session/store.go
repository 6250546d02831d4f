package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	bolt "go.etcd.io/bbolt"

	"social-sync/internal/db"
)

// Cookie names persisted by the store.
const (
	TokenCookie  = "token"
	TenantCookie = "tenant"
)

// CookieStore persists the session cookies.
type CookieStore interface {
	Load() (Credentials, error)
	Save(creds Credentials, expires time.Time) error
	Clear() error
}

// Store is a bbolt-backed cookie jar holding only the auth token and the
// tenant identifier.
type Store struct {
	db *bolt.DB
}

// NewStore constructs a Store over an opened cookie database.
func NewStore(database *bolt.DB) *Store {
	return &Store{db: database}
}

// Load returns the stored credentials. Missing or expired cookies yield
// ErrNoSession.
func (s *Store) Load() (Credentials, error) {
	var creds Credentials
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.CookieBucket)
		if b == nil {
			return ErrNoSession
		}
		token, err := readCookie(b, TokenCookie)
		if err != nil {
			return err
		}
		tenant, err := readCookie(b, TenantCookie)
		if err != nil && !errors.Is(err, ErrNoSession) {
			return err
		}
		creds = Credentials{Token: token, Tenant: tenant}
		return nil
	})
	return creds, err
}

// Save writes both cookies. A zero expires makes them session cookies.
func (s *Store) Save(creds Credentials, expires time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(db.CookieBucket)
		if err != nil {
			return err
		}
		if err := writeCookie(b, TokenCookie, creds.Token, expires); err != nil {
			return err
		}
		return writeCookie(b, TenantCookie, creds.Tenant, expires)
	})
}

// Clear removes both cookies.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.CookieBucket)
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(TokenCookie)); err != nil {
			return err
		}
		return b.Delete([]byte(TenantCookie))
	})
}

func writeCookie(b *bolt.Bucket, name, value string, expires time.Time) error {
	cookie := &http.Cookie{Name: name, Value: value, Path: "/", HttpOnly: true, Expires: expires}
	if err := cookie.Valid(); err != nil {
		return fmt.Errorf("cookie %s: %w", name, err)
	}
	return b.Put([]byte(name), []byte(cookie.String()))
}

func readCookie(b *bolt.Bucket, name string) (string, error) {
	raw := b.Get([]byte(name))
	if raw == nil {
		return "", ErrNoSession
	}
	cookie, err := http.ParseSetCookie(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse cookie %s: %w", name, err)
	}
	if !cookie.Expires.IsZero() && !time.Now().Before(cookie.Expires) {
		return "", ErrNoSession
	}
	return cookie.Value, nil
}
