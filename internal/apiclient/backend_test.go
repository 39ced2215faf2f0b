package apiclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pyresume/dashclient/internal/auth/authtest"
	"github.com/pyresume/dashclient/internal/domain"
)

const (
	testEmail    = "me@example.com"
	testPassword = "hunter22"
	testCode     = "123456"
	testUserID   = 7
)

// fakeBackend imitates the dashboard API: one account, one live access
// token and one live refresh token at a time.
type fakeBackend struct {
	t *testing.T

	mu      sync.Mutex
	access  string
	refresh string
	rotate  bool // issue a new refresh token on each renewal
	sent    []map[string]string

	refreshCalls atomic.Int32
	apiCalls     atomic.Int32
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+domain.PathLogin, b.login)
	mux.HandleFunc("POST "+domain.PathLoginWithToken, b.loginWithCode)
	mux.HandleFunc("POST "+domain.PathRegister, b.register)
	mux.HandleFunc("POST "+domain.PathSendVerificationEmail, b.sendCode)
	mux.HandleFunc("POST "+domain.PathTokenRefresh, b.renew)
	mux.HandleFunc("POST "+domain.PathTokenVerify, b.verify)
	mux.HandleFunc("GET "+domain.PathSelfInfo, b.authed(b.selfInfo))
	mux.HandleFunc("GET "+domain.PathDashboardStats, b.authed(b.stats))
	mux.HandleFunc("GET "+domain.PathCompanies, b.authed(b.companies))
	mux.HandleFunc("GET "+domain.PathApplications, b.authed(b.applications))
	mux.HandleFunc("GET /api/companies/options/", b.authed(b.companyOptions))
	mux.HandleFunc("GET /api/companies/{id}/", b.authed(b.missingCompany))
	mux.HandleFunc("GET /api/flaky/", b.authed(b.softFailure))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

// expireAccess invalidates the live access token, as if its lifetime ran out.
func (b *fakeBackend) expireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = "expired-" + b.access
}

// revokeRefresh invalidates the live refresh token.
func (b *fakeBackend) revokeRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = ""
}

func (b *fakeBackend) currentAccess() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.access
}

func (b *fakeBackend) issueSession() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = authtest.MintAccess(b.t, testUserID, time.Now().Add(5*time.Minute))
	b.refresh = "refresh-" + b.access[len(b.access)-8:]
	return map[string]string{"access": b.access, "refresh": b.refresh, "user_email": testEmail}
}

func readJSON(r *http.Request) map[string]string {
	var in map[string]string
	_ = json.NewDecoder(r.Body).Decode(&in)
	return in
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	if in["email"] != testEmail || in["password"] != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	writeJSON(w, http.StatusOK, b.issueSession())
}

func (b *fakeBackend) loginWithCode(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	if in["email"] != testEmail || in["token"] != testCode {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid or expired token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": b.issueSession()})
}

func (b *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	if in["token"] != testCode {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid or expired token"})
		return
	}
	if in["email"] == testEmail {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": "Email already registered"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "registered"})
}

func (b *fakeBackend) sendCode(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	b.mu.Lock()
	b.sent = append(b.sent, in)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *fakeBackend) renew(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	in := readJSON(r)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refresh == "" || in["refresh"] != b.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	b.access = authtest.MintAccess(b.t, testUserID, time.Now().Add(5*time.Minute))
	out := map[string]string{"access": b.access}
	if b.rotate {
		b.refresh = "rotated-" + b.access[len(b.access)-8:]
		out["refresh"] = b.refresh
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) verify(w http.ResponseWriter, r *http.Request) {
	if readJSON(r)["token"] != b.currentAccess() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (b *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.apiCalls.Add(1)
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || token != b.currentAccess() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) selfInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"id": testUserID, "email": testEmail, "username": "me"},
	})
}

func (b *fakeBackend) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status_counts": map[string]int{"面试中": 2, "已投递": 5},
		"funnel_stats":  map[string]int{"total_applications": 7, "passed_screening": 4, "hired": 1},
	})
}

func (b *fakeBackend) companies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": []map[string]any{
			{"id": 1, "company_name": "Acme", "website_link": "acme.example", "uname": "me", "upass": "pw"},
		},
		"count":        1,
		"total_pages":  1,
		"current_page": 1,
		"search":       r.URL.Query().Get("search"),
	})
}

func (b *fakeBackend) applications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": []map[string]any{
			{"id": 3, "position": "Backend Engineer", "salery": "30k", "status": "面试中",
				"company": map[string]any{"id": 1, "company_name": "Acme"}},
			{"id": 4, "position": "SRE", "status": "已投递", "company": nil},
		},
		"count":        12,
		"total_pages":  2,
		"current_page": 1,
	})
}

func (b *fakeBackend) companyOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{
		{"id": 1, "company_name": "Acme"},
		{"id": 2, "company_name": "Globex"},
	})
}

func (b *fakeBackend) missingCompany(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Company not found"})
}

func (b *fakeBackend) softFailure(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "database is busy"})
}
