package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lingx/api/internal/store"
)

func newTestServer(fs *fakeStore) *HTTPServer {
	svc, _ := newTestService(fs)
	return NewHTTPServer(svc, "*")
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	var payload map[string]any
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid JSON response for %s %s: %v", method, path, err)
		}
	}
	return recorder, payload
}

func login(t *testing.T, server *HTTPServer, name string) (token, refreshToken string) {
	t.Helper()
	recorder, payload := doRequest(t, server, http.MethodPost, "/api/session/login", "", `{"name":"`+name+`"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", recorder.Code, recorder.Body.String())
	}
	return payload["token"].(string), payload["refreshToken"].(string)
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	server := newTestServer(&fakeStore{})

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if recorder.Code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("unexpected health response: %d %v", recorder.Code, payload)
	}

	recorder, payload = doRequest(t, server, http.MethodGet, "/api/ready", "", "")
	if recorder.Code != http.StatusOK || payload["status"] != "ready" {
		t.Fatalf("unexpected ready response: %d %v", recorder.Code, payload)
	}
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	server := newTestServer(&fakeStore{})

	token, refreshToken := login(t, server, "Avery")

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/session", token, "")
	if recorder.Code != http.StatusOK || payload["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %d %v", recorder.Code, payload)
	}

	recorder, payload = doRequest(t, server, http.MethodPost, "/api/session/refresh", "", `{"refreshToken":"`+refreshToken+`"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("refresh failed: %d %s", recorder.Code, recorder.Body.String())
	}
	rotated := payload["refreshToken"].(string)
	if rotated == refreshToken {
		t.Fatal("expected refresh to rotate the token")
	}

	// The rotated-out token is single use.
	recorder, _ = doRequest(t, server, http.MethodPost, "/api/session/refresh", "", `{"refreshToken":"`+refreshToken+`"}`)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for reused refresh token, got %d", recorder.Code)
	}

	recorder, _ = doRequest(t, server, http.MethodPost, "/api/session/logout", "", `{"refreshToken":"`+rotated+`"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", recorder.Code)
	}
	recorder, _ = doRequest(t, server, http.MethodPost, "/api/session/refresh", "", `{"refreshToken":"`+rotated+`"}`)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", recorder.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server := newTestServer(&fakeStore{})

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/projects", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %v", payload["code"])
	}

	recorder, _ = doRequest(t, server, http.MethodGet, "/api/projects", "not-a-token", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", recorder.Code)
	}
}

func TestDeveloperRoleBlockedFromManageAndMerge(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return "DEVELOPER", nil
		},
	}
	server := newTestServer(fs)
	token, _ := login(t, server, "Drew")

	recorder, payload := doRequest(t, server, http.MethodPut, "/api/projects/prj_1/quality-config", token,
		`{"aiEvaluationEnabled":false}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for developer updating quality config, got %d %v", recorder.Code, payload)
	}

	recorder, _ = doRequest(t, server, http.MethodPost, "/api/branches/br_feat/merge", token,
		`{"targetBranchId":"br_main"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for developer merging, got %d", recorder.Code)
	}

	// Read operations stay open to developers.
	recorder, _ = doRequest(t, server, http.MethodGet, "/api/branches/br_feat/quality-summary", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for developer reading summary, got %d", recorder.Code)
	}
}

func TestManagerRoleBlockedFromAdmin(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: func(context.Context, string, string) (string, error) {
			return "MANAGER", nil
		},
	}
	server := newTestServer(fs)
	token, _ := login(t, server, "Morgan")

	recorder, _ := doRequest(t, server, http.MethodPost, "/api/projects/prj_1/members", token,
		`{"userName":"Blake","role":"DEVELOPER"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager adding members, got %d", recorder.Code)
	}

	// Managers may change quality config.
	recorder, _ = doRequest(t, server, http.MethodPut, "/api/projects/prj_1/quality-config", token,
		`{"aiEvaluationEnabled":false}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager updating quality config, got %d", recorder.Code)
	}
}

func TestQualityConfigUpdateValidation(t *testing.T) {
	server := newTestServer(&fakeStore{})
	token, _ := login(t, server, "Avery")

	recorder, payload := doRequest(t, server, http.MethodPut, "/api/projects/prj_1/quality-config", token,
		`{"aiEvaluationEnabled":true}`)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for AI without model, got %d %v", recorder.Code, payload)
	}

	recorder, payload = doRequest(t, server, http.MethodPut, "/api/projects/prj_1/quality-config", token,
		`{"aiEvaluationEnabled":true,"model":"gpt-4o-mini","provider":"openai"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", recorder.Code, payload)
	}
	if payload["aiEvaluationEnabled"] != true || payload["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected config payload: %v", payload)
	}
}

func TestQualitySummaryPayload(t *testing.T) {
	fs := &fakeStore{
		branchQualitySummaryFn: func(_ context.Context, branchID string) (store.BranchSummary, error) {
			return store.BranchSummary{
				BranchID:          branchID,
				TotalTranslations: 10,
				Evaluated:         6,
				Unevaluated:       4,
				Passing:           5,
				Failing:           1,
				AverageScore:      87.5,
				Distribution:      store.ScoreDistribution{Excellent: 2, Good: 3, Poor: 1},
				ByLanguage: map[string]store.LanguageStats{
					"de": {Total: 5, Evaluated: 2, Passing: 2, ScoreSum: 170},
				},
			}, nil
		},
	}
	server := newTestServer(fs)
	token, _ := login(t, server, "Avery")

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/branches/br_1/quality-summary", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("summary failed: %d %s", recorder.Code, recorder.Body.String())
	}
	if payload["totalTranslations"] != float64(10) || payload["unevaluated"] != float64(4) {
		t.Fatalf("unexpected totals: %v", payload)
	}
	if payload["totalScored"] != float64(6) {
		t.Fatalf("expected totalScored 6, got %v", payload["totalScored"])
	}
	if payload["passThreshold"] != float64(80) {
		t.Fatalf("expected passThreshold 80, got %v", payload["passThreshold"])
	}
	distribution := payload["distribution"].(map[string]any)
	if distribution["excellent"] != float64(2) || distribution["needsReview"] != float64(1) {
		t.Fatalf("unexpected distribution: %v", distribution)
	}
	byLanguage := payload["byLanguage"].(map[string]any)
	de := byLanguage["de"].(map[string]any)
	if de["count"] != float64(2) || de["average"] != float64(85) {
		t.Fatalf("expected de {count: 2, average: 85}, got %v", de)
	}
}

func TestICUValidateEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{})
	token, _ := login(t, server, "Avery")

	recorder, payload := doRequest(t, server, http.MethodPost, "/api/icu/validate", token,
		`{"message":"You have {count, plural, one {# item} other {# items}}"}`)
	if recorder.Code != http.StatusOK || payload["valid"] != true {
		t.Fatalf("expected valid ICU message, got %d %v", recorder.Code, payload)
	}
	args := payload["arguments"].([]any)
	if len(args) != 1 || args[0] != "count" {
		t.Fatalf("expected argument count, got %v", args)
	}

	recorder, payload = doRequest(t, server, http.MethodPost, "/api/icu/validate", token,
		`{"message":"Unbalanced {brace"}`)
	if recorder.Code != http.StatusOK || payload["valid"] != false {
		t.Fatalf("expected invalid ICU message, got %d %v", recorder.Code, payload)
	}
}

func TestMergeConflictOverHTTP(t *testing.T) {
	fx := newMergeFixture()
	fx.base = map[string]map[string]string{"greeting": {"en": "Hello"}}
	fx.snapshots["br_feat"] = map[string]map[string]string{"greeting": {"en": "Hi"}}
	fx.snapshots["br_main"] = map[string]map[string]string{"greeting": {"en": "Hey"}}

	server := newTestServer(fx.store())
	token, _ := login(t, server, "Avery")

	recorder, payload := doRequest(t, server, http.MethodPost, "/api/branches/br_feat/merge", token,
		`{"targetBranchId":"br_main"}`)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", recorder.Code, recorder.Body.String())
	}
	if payload["code"] != "UNRESOLVED_CONFLICTS" {
		t.Fatalf("expected UNRESOLVED_CONFLICTS, got %v", payload["code"])
	}

	// Wire-format resolutions: a plain "source"/"target" string or a
	// per-language object both decode.
	recorder, payload = doRequest(t, server, http.MethodPost, "/api/branches/br_feat/merge", token,
		`{"targetBranchId":"br_main","resolutions":[{"key":"greeting","resolution":{"en":"Howdy"}}]}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected merge to succeed with custom resolution, got %d %s", recorder.Code, recorder.Body.String())
	}
	if payload["conflictsResolved"] != float64(1) {
		t.Fatalf("expected 1 resolved conflict, got %v", payload["conflictsResolved"])
	}
}

func TestAPIKeyActsAsBearerCredential(t *testing.T) {
	var issued *store.APIKey
	fs := &fakeStore{}
	fs.insertAPIKeyFn = func(_ context.Context, key store.APIKey) error {
		issued = &key
		return nil
	}
	fs.getAPIKeyFn = func(_ context.Context, keyID string) (store.APIKey, error) {
		if issued != nil && issued.ID == keyID {
			return *issued, nil
		}
		return store.APIKey{}, sql.ErrNoRows
	}
	server := newTestServer(fs)
	token, _ := login(t, server, "Avery")

	recorder, payload := doRequest(t, server, http.MethodPost, "/api/projects/prj_1/api-keys", token,
		`{"name":"ci"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("api key creation failed: %d %s", recorder.Code, recorder.Body.String())
	}
	plaintext := payload["token"].(string)
	if !strings.HasPrefix(plaintext, "lx_") {
		t.Fatalf("expected lx_ prefixed key, got %q", plaintext)
	}

	recorder, _ = doRequest(t, server, http.MethodGet, "/api/projects/prj_1", plaintext, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected API key to authenticate, got %d %s", recorder.Code, recorder.Body.String())
	}

	recorder, _ = doRequest(t, server, http.MethodGet, "/api/projects/prj_1", "lx_"+issued.ID+"_wrong-secret", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered key, got %d", recorder.Code)
	}

	// Revocation fails closed.
	issued = nil
	recorder, _ = doRequest(t, server, http.MethodGet, "/api/projects/prj_1", plaintext, "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked key, got %d", recorder.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	server := newTestServer(&fakeStore{})
	token, _ := login(t, server, "Avery")

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/widgets", token, "")
	if recorder.Code != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d %v", recorder.Code, payload)
	}
}
