package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"trailhead/internal/sentinel"
)

// CredentialStoreSuite exercises both store implementations against the same
// contract: absent credentials map to ErrNotFound, Clear is idempotent.
type CredentialStoreSuite struct {
	suite.Suite
}

func TestCredentialStoreSuite(t *testing.T) {
	suite.Run(t, new(CredentialStoreSuite))
}

func (s *CredentialStoreSuite) stores() map[string]Store {
	dir := s.T().TempDir()
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"file":   NewFileStore(filepath.Join(dir, "credential")),
	}
}

func (s *CredentialStoreSuite) TestRoundTrip() {
	for name, store := range s.stores() {
		s.Run(name, func() {
			_, err := store.Load()
			s.Require().ErrorIs(err, sentinel.ErrNotFound)

			s.Require().NoError(store.Save("tok-123"))
			tok, err := store.Load()
			s.Require().NoError(err)
			s.Equal("tok-123", tok)

			s.Require().NoError(store.Save("tok-456"))
			tok, err = store.Load()
			s.Require().NoError(err)
			s.Equal("tok-456", tok)

			s.Require().NoError(store.Clear())
			_, err = store.Load()
			s.Require().ErrorIs(err, sentinel.ErrNotFound)

			// Clearing again is a no-op.
			s.Require().NoError(store.Clear())
		})
	}
}

func (s *CredentialStoreSuite) TestFileStorePermissions() {
	path := filepath.Join(s.T().TempDir(), "credential")
	store := NewFileStore(path)
	s.Require().NoError(store.Save("secret"))

	info, err := os.Stat(path)
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o600), info.Mode().Perm())
}

func (s *CredentialStoreSuite) TestFileStoreEmptyFileIsAbsent() {
	path := filepath.Join(s.T().TempDir(), "credential")
	s.Require().NoError(os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := NewFileStore(path).Load()
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

// TokenPeekSuite tests the unverified expiry peek.
type TokenPeekSuite struct {
	suite.Suite
}

func TestTokenPeekSuite(t *testing.T) {
	suite.Run(t, new(TokenPeekSuite))
}

func (s *TokenPeekSuite) signedToken(exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Subject:   "42",
	})
	signed, err := tok.SignedString([]byte("test-key"))
	s.Require().NoError(err)
	return signed
}

func (s *TokenPeekSuite) TestExpiresAt() {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := ExpiresAt(s.signedToken(exp))
	s.Require().True(ok)
	s.WithinDuration(exp, got, time.Second)
}

func (s *TokenPeekSuite) TestExpired() {
	now := time.Now()

	s.Run("future expiry is not expired", func() {
		s.False(Expired(s.signedToken(now.Add(time.Hour)), now))
	})

	s.Run("past expiry is expired", func() {
		s.True(Expired(s.signedToken(now.Add(-time.Hour)), now))
	})

	s.Run("opaque token is never locally expired", func() {
		s.False(Expired("not-a-jwt", now))
	})

	s.Run("jwt without exp is never locally expired", func() {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "42"})
		signed, err := tok.SignedString([]byte("test-key"))
		s.Require().NoError(err)
		s.False(Expired(signed, now))
	})
}
