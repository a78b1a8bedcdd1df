package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

type countingVerifier struct {
	principal model.Principal
	err       error
	calls     int
}

func (v *countingVerifier) VerifyToken(context.Context, string) (model.Principal, error) {
	v.calls++
	return v.principal, v.err
}

func newAuthForTest(t *testing.T, v TokenVerifier) *AuthService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(v, 64, time.Minute, logger)
}

func TestVerifyTokenCachesSuccess(t *testing.T) {
	verifier := &countingVerifier{principal: model.Principal{ID: uuid.New(), Role: model.RoleAgent}}
	auth := newAuthForTest(t, verifier)

	first, err := auth.VerifyToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	second, err := auth.VerifyToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("verify cached: %v", err)
	}
	if first != second {
		t.Fatalf("cache returned a different principal")
	}
	if verifier.calls != 1 {
		t.Fatalf("collaborator called %d times, want 1", verifier.calls)
	}
}

func TestVerifyTokenEmpty(t *testing.T) {
	verifier := &countingVerifier{}
	auth := newAuthForTest(t, verifier)

	if _, err := auth.VerifyToken(context.Background(), ""); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
	if verifier.calls != 0 {
		t.Fatalf("collaborator called for an empty token")
	}
}

func TestVerifyTokenRejectionNotCached(t *testing.T) {
	verifier := &countingVerifier{err: ErrAuthRejected}
	auth := newAuthForTest(t, verifier)

	for range 3 {
		if _, err := auth.VerifyToken(context.Background(), "bad"); !errors.Is(err, ErrAuthRejected) {
			t.Fatalf("err = %v, want ErrAuthRejected", err)
		}
	}
	if verifier.calls != 3 {
		t.Fatalf("rejection was cached: %d calls", verifier.calls)
	}
}

func TestBreakerOpensOnBackendFailures(t *testing.T) {
	verifier := &countingVerifier{err: errors.New("connection refused")}
	auth := newAuthForTest(t, verifier)

	for range 5 {
		if _, err := auth.VerifyToken(context.Background(), "tok"); err == nil {
			t.Fatalf("expected backend error")
		}
	}
	callsWhenTripped := verifier.calls

	// Open breaker fails fast without touching the collaborator.
	if _, err := auth.VerifyToken(context.Background(), "tok"); err == nil {
		t.Fatalf("expected breaker error")
	}
	if verifier.calls != callsWhenTripped {
		t.Fatalf("open breaker still reached the collaborator")
	}
}

func TestRejectionsDoNotTripBreaker(t *testing.T) {
	verifier := &countingVerifier{err: ErrAuthRejected}
	auth := newAuthForTest(t, verifier)

	for i := range 20 {
		if _, err := auth.VerifyToken(context.Background(), "bad"); !errors.Is(err, ErrAuthRejected) {
			t.Fatalf("call %d: err = %v, want ErrAuthRejected", i, err)
		}
	}
	if verifier.calls != 20 {
		t.Fatalf("breaker tripped on rejections: %d calls", verifier.calls)
	}
}

func TestHTTPTokenVerifier(t *testing.T) {
	principalID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tokens/verify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"principal_id":"` + principalID.String() + `","role":"agent"}`))
		case "Bearer badrole":
			_, _ = w.Write([]byte(`{"principal_id":"` + principalID.String() + `","role":"superuser"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)

	v := NewHTTPTokenVerifier(srv.URL, time.Second)

	principal, err := v.VerifyToken(context.Background(), "good")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal.ID != principalID || principal.Role != model.RoleAgent {
		t.Fatalf("principal = %+v", principal)
	}

	if _, err := v.VerifyToken(context.Background(), "bad"); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("401 err = %v, want ErrAuthRejected", err)
	}
	if _, err := v.VerifyToken(context.Background(), "badrole"); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("unknown role err = %v, want ErrAuthRejected", err)
	}
}
