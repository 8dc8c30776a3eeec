package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"go.uber.org/zap"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
)

type UserGetter interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// JWTAuthenticator verifies HS256 tokens whose subject is a user id.
type JWTAuthenticator struct {
	secret []byte
	users  UserGetter
	parser *jwt.Parser
}

func NewJWTAuthenticator(secret string, users UserGetter) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: []byte(secret),
		users:  users,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired()),
	}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	t, err := a.parser.Parse(token, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	user, err := a.users.Get(ctx, sub)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, sub)
		}
		return nil, fmt.Errorf("resolving user %s: %w", sub, err)
	}

	return user, nil
}

// AuthenticateRequest reads the token with cookie jwt > cookie token > bearer header precedence.
func (a *JWTAuthenticator) AuthenticateRequest(r *http.Request) (*model.User, error) {
	return a.Authenticate(r.Context(), TokenFromRequest(r))
}

func (a *JWTAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.AuthenticateRequest(r)
		if err != nil {
			zap.S().Named("auth").Debugw("request rejected", "path", r.URL.Path, "reason", err)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewUserContext(r.Context(), *user)))
	})
}

// GenerateToken signs an HS256 token for userID. Used by the dev token command and tests.
func GenerateToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}
