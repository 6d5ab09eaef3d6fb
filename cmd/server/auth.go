package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ConnectionState tracks per-connection authentication.
type ConnectionState struct {
	subject       string
	authenticated bool
	tokenExpiry   time.Time
}

func (cs *ConnectionState) Authenticated() bool {
	if !cs.authenticated {
		return false
	}
	if !cs.tokenExpiry.IsZero() && time.Now().After(cs.tokenExpiry) {
		return false
	}
	return true
}

// AuthResponse is the payload of a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Subject       string `json:"subject,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// validateJWT checks an HS256-family token against the configured
// secret and returns the subject.
func (s *Server) validateJWT(tokenString string) (subject string, expiresAt time.Time, err error) {
	if s.cfg.Auth.JWTSecret == "" {
		return "", time.Time{}, errors.New("no JWT secret configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, errors.New("invalid token claims")
	}

	if s.cfg.Auth.Issuer != "" {
		issuer, _ := claims.GetIssuer()
		if issuer != s.cfg.Auth.Issuer {
			return "", time.Time{}, fmt.Errorf("invalid issuer %q", issuer)
		}
	}
	if s.cfg.Auth.Audience != "" {
		audiences, _ := claims.GetAudience()
		found := false
		for _, aud := range audiences {
			if aud == s.cfg.Auth.Audience {
				found = true
				break
			}
		}
		if !found {
			return "", time.Time{}, fmt.Errorf("invalid audience, expected %q", s.cfg.Auth.Audience)
		}
	}

	subject, _ = claims.GetSubject()
	if subject == "" {
		return "", time.Time{}, errors.New("token missing sub claim")
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return subject, expiresAt, nil
}

// handleAuth processes "AUTH JWT <token>" lines.
func (s *Server) handleAuth(id, line string, state *ConnectionState) Response {
	parts := strings.Fields(line)
	if len(parts) != 3 || !strings.EqualFold(parts[1], "JWT") {
		return Response{Error: "expected AUTH JWT <token>"}
	}

	subject, expiresAt, err := s.validateJWT(parts[2])
	if err != nil {
		log.Printf("[%s] auth failed: %v", id, err)
		return Response{Error: err.Error()}
	}

	state.subject = subject
	state.authenticated = true
	state.tokenExpiry = expiresAt
	log.Printf("[%s] authenticated as %s", id, subject)

	ar := AuthResponse{Authenticated: true, Subject: subject}
	if !expiresAt.IsZero() {
		ar.ExpiresIn = int(time.Until(expiresAt).Seconds())
	}
	return Response{OK: true, Auth: &ar}
}
