package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/shaho/internal/model"
)

func serveAs(h http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/organizations/org-1/reminders/run", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)
	if cfg.GeneralBurst != 120 || cfg.RunBurst != 10 {
		t.Errorf("bursts = (%d, %d), want (120, 10)", cfg.GeneralBurst, cfg.RunBurst)
	}
	if float64(cfg.GeneralRate) != 2.0 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if DefaultRateLimiterConfig() != cfg {
		t.Error("DefaultRateLimiterConfig should equal NewRateLimiterConfig(120, 10)")
	}
}

func TestRateLimiter_RunMiddleware_BurstThen429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 100, GeneralBurst: 100,
		RunRate: 0.1, RunBurst: 2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	h := rl.RunMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		if w := serveAs(h, "user-1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := serveAs(h, "user-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want %q", got, "10")
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}

	// 別ユーザーは独立に制限される
	if w := serveAs(h, "user-2"); w.Code != http.StatusOK {
		t.Errorf("other user: status = %d, want 200", w.Code)
	}
}

func TestRateLimiter_GeneralAndRunAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 0.1, GeneralBurst: 1,
		RunRate: 0.1, RunBurst: 1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	run := rl.RunMiddleware()(okHandler())

	if w := serveAs(general, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("general: status = %d, want 200", w.Code)
	}
	if w := serveAs(run, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("run: status = %d, want 200", w.Code)
	}
	if w := serveAs(general, "user-1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("general second: status = %d, want 429", w.Code)
	}
	if rl.GeneralLimiterCount() != 1 || rl.RunLimiterCount() != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", rl.GeneralLimiterCount(), rl.RunLimiterCount())
	}
}

func TestRateLimiter_RequiresUserID(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	if w := serveAs(rl.GeneralMiddleware()(okHandler()), ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 1,
		RunRate: 1, RunBurst: 1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	serveAs(rl.GeneralMiddleware()(okHandler()), "user-1")
	serveAs(rl.RunMiddleware()(okHandler()), "user-1")

	rl.cleanup(time.Now().Add(time.Minute))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("entries evicted too early")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.RunLimiterCount() != 0 {
		t.Errorf("counts = (%d, %d), want (0, 0)", rl.GeneralLimiterCount(), rl.RunLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
