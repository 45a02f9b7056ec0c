// Package auth issues and verifies the tokens callers of the API present.
//
// A token is an EdDSA-signed JWT whose subject is the chat platform's
// numeric user ID. The chat front-end holds the signature key and the
// server holds only the verification key.
package auth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Config holds the auth configuration.
type Config struct {
	SignatureKeyFile    string `env:"SIGNATURE_KEY_FILE"`    // PKCS #8 PEM, needed to issue tokens
	VerificationKeyFile string `env:"VERIFICATION_KEY_FILE"` // PKIX PEM, needed to verify tokens
}

type Token struct {
	ID        uuid.UUID
	UserID    int64
	ExpiresAt time.Time
}

// NewToken signs a token for userID that expires after ttl.
func NewToken(signatureKey ed25519.PrivateKey, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	})
	s, err := jwtToken.SignedString(signatureKey)
	if err != nil {
		return "", fmt.Errorf("auth.NewToken: %w", err)
	}
	return s, nil
}

type Verifier struct {
	verificationKey ed25519.PublicKey
}

func NewVerifier(verificationKey ed25519.PublicKey) *Verifier {
	return &Verifier{verificationKey: verificationKey}
}

// Verify parses s and checks its signature and expiration.
// Every failure is reported as ErrInvalidToken.
func (v *Verifier) Verify(s string) (*Token, error) {
	jwtToken, err := jwt.ParseWithClaims(
		s,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			return v.verificationKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims := jwtToken.Claims.(*jwt.RegisteredClaims)

	if claims.ID == "" {
		return nil, errors.Join(ErrInvalidToken, errors.New("empty jti token claim"))
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, fmt.Errorf("jti token claim: %w", err))
	}

	if claims.Subject == "" {
		return nil, errors.Join(ErrInvalidToken, errors.New("empty sub token claim"))
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, fmt.Errorf("sub token claim: %w", err))
	}

	return &Token{
		ID:        id,
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ReadSignatureKeyFile reads an Ed25519 private key from a PKCS #8 PEM file.
func ReadSignatureKeyFile(name string) (ed25519.PrivateKey, error) {
	der, err := readPEMFile(name)
	if err != nil {
		return nil, fmt.Errorf("auth.ReadSignatureKeyFile: %w", err)
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("auth.ReadSignatureKeyFile: %w", err)
	}
	key, ok := keyAny.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("auth.ReadSignatureKeyFile: %s isn't an ed25519 private key file", name)
	}
	return key, nil
}

// ReadVerificationKeyFile reads an Ed25519 public key from a PKIX PEM file.
func ReadVerificationKeyFile(name string) (ed25519.PublicKey, error) {
	der, err := readPEMFile(name)
	if err != nil {
		return nil, fmt.Errorf("auth.ReadVerificationKeyFile: %w", err)
	}
	keyAny, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("auth.ReadVerificationKeyFile: %w", err)
	}
	key, ok := keyAny.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth.ReadVerificationKeyFile: %s isn't an ed25519 public key file", name)
	}
	return key, nil
}

func readPEMFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s has no PEM block", name)
	}
	return block.Bytes, nil
}
