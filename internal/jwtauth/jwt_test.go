package jwtauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

// =============================================================================
// JWT Validator Test Suite
// =============================================================================

const testSigningKey = "test-signing-key"

type JWTSuite struct {
	suite.Suite
	validator *Validator
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTSuite))
}

func (s *JWTSuite) SetupTest() {
	s.validator = NewValidator(testSigningKey)
}

func (s *JWTSuite) signedToken(key string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	s.Require().NoError(err)
	return signed
}

func (s *JWTSuite) TestValidateToken() {
	s.Run("returns the subject as auditor identity", func() {
		token := s.signedToken(testSigningKey, jwt.MapClaims{
			"sub": "auditor-7",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		identity, err := s.validator.ValidateToken(token)
		s.Require().NoError(err)
		s.Equal("auditor-7", identity)
	})

	s.Run("rejects an expired token", func() {
		token := s.signedToken(testSigningKey, jwt.MapClaims{
			"sub": "auditor-7",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := s.validator.ValidateToken(token)
		s.Require().Error(err)
		s.Contains(err.Error(), "expired")
	})

	s.Run("rejects a token signed with a different key", func() {
		token := s.signedToken("some-other-key", jwt.MapClaims{
			"sub": "auditor-7",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := s.validator.ValidateToken(token)
		s.Error(err)
	})

	s.Run("rejects a token without a subject", func() {
		token := s.signedToken(testSigningKey, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := s.validator.ValidateToken(token)
		s.Require().Error(err)
		s.Contains(err.Error(), "subject")
	})

	s.Run("rejects garbage", func() {
		_, err := s.validator.ValidateToken("not.a.token")
		s.Error(err)
	})
}
