package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

// ErrAuthRejected marks a token the collaborator refused. Rejections are
// cached failures of the caller, not of the collaborator, so they do not
// trip the breaker.
var ErrAuthRejected = errors.New("authentication rejected")

// TokenVerifier is the external auth collaborator. A failure here closes
// the socket before any registry state exists.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (model.Principal, error)
}

// Auther is the auth surface the transport handlers consume.
type Auther interface {
	VerifyToken(ctx context.Context, token string) (model.Principal, error)
}

// AuthService fronts the collaborator with a circuit breaker and a bounded
// TTL cache of verified tokens, so a flapping auth backend cannot stall the
// handshake path.
type AuthService struct {
	verifier TokenVerifier
	breaker  *gobreaker.CircuitBreaker
	cache    *expirable.LRU[string, model.Principal]
	logger   *slog.Logger
}

func NewAuthService(verifier TokenVerifier, cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		verifier: verifier,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "auth-verify",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("auth breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		cache:  expirable.NewLRU[string, model.Principal](cacheSize, nil, cacheTTL),
		logger: logger,
	}
}

// VerifyToken resolves a token to (principal, role). Cache hit bypasses
// the collaborator entirely.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, fmt.Errorf("%w: missing token", ErrAuthRejected)
	}
	if principal, ok := s.cache.Get(token); ok {
		return principal, nil
	}

	res, err := s.breaker.Execute(func() (any, error) {
		principal, err := s.verifier.VerifyToken(ctx, token)
		if errors.Is(err, ErrAuthRejected) {
			// Count as a success for the breaker: the backend answered.
			return model.Principal{}, nil
		}
		if err != nil {
			return nil, err
		}
		return principal, nil
	})
	if err != nil {
		return model.Principal{}, fmt.Errorf("verify token: %w", err)
	}

	principal := res.(model.Principal)
	if principal.ID == uuid.Nil || !principal.Role.Valid() {
		return model.Principal{}, ErrAuthRejected
	}
	s.cache.Add(token, principal)
	return principal, nil
}

// HTTPTokenVerifier calls the platform auth service over HTTP.
type HTTPTokenVerifier struct {
	client  *http.Client
	baseURL string
}

func NewHTTPTokenVerifier(baseURL string, timeout time.Duration) *HTTPTokenVerifier {
	return &HTTPTokenVerifier{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (v *HTTPTokenVerifier) VerifyToken(ctx context.Context, token string) (model.Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/v1/tokens/verify", nil)
	if err != nil {
		return model.Principal{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return model.Principal{}, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.Principal{}, ErrAuthRejected
	default:
		return model.Principal{}, fmt.Errorf("auth service returned %d", resp.StatusCode)
	}

	var body struct {
		PrincipalID uuid.UUID  `json:"principal_id"`
		Role        model.Role `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Principal{}, fmt.Errorf("decode verify response: %w", err)
	}
	if !body.Role.Valid() {
		return model.Principal{}, fmt.Errorf("%w: unknown role %q", ErrAuthRejected, body.Role)
	}
	return model.Principal{ID: body.PrincipalID, Role: body.Role}, nil
}
