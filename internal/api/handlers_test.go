package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ark-trading-engine/internal/auth"
	"ark-trading-engine/internal/patterns"
	"ark-trading-engine/internal/pipeline"
	"ark-trading-engine/internal/planner"
	"ark-trading-engine/internal/policy"
	"ark-trading-engine/internal/rules"
	"ark-trading-engine/internal/scoring"
)

func testLibrary() *patterns.Library {
	return patterns.NewLibrary(&patterns.Definition{
		PatternID: "low_float_squeezer",
		Name:      "Low Float Squeezer",
		Direction: patterns.DirectionLong,
		Rules: patterns.RuleGroups{
			Required: []rules.Rule{
				{Field: "volume", Operator: rules.OpGreaterThan, Value: "2x_avg_volume"},
				{Field: "short_interest", Operator: rules.OpGreaterThan, Value: 20.0},
			},
			Preferred: []rules.Rule{
				{Field: "float", Operator: rules.OpLessThan, Value: 50000000.0, Weight: 0.15},
			},
		},
		ConfidenceWeight: 1.0,
		RiskManagement: &patterns.RiskManagement{
			StopLossType:    "percentage",
			StopLossPercent: 0.05,
		},
	})
}

func newTestServer(t *testing.T, jwtManager *auth.JWTManager, credentials Credentials) *Server {
	t.Helper()
	logger := zerolog.Nop()
	library := testLibrary()
	eval := rules.NewEvaluator()
	pipe := pipeline.New(
		pipeline.Config{MinConfidence: 0.6},
		patterns.NewEngine(library, eval),
		scoring.NewTradeScorer(),
		policy.NewValidator(nil, eval, logger),
		planner.NewBuilder(planner.Config{AccountSize: 50000}, logger),
		nil, nil, logger,
	)
	return NewServer(ServerConfig{ProductionMode: true}, pipe, library,
		nil, nil, nil, jwtManager, credentials, logger)
}

func evaluateBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"symbol":         "GME",
		"direction":      "long",
		"price":          245.50,
		"volume":         25000000,
		"avg_volume":     8000000,
		"short_interest": 45,
		"float":          20000000,
	})
	return body
}

func doRequest(s *Server, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHTTPServerTimeoutsFromConfig(t *testing.T) {
	s := newTestServer(t, nil, Credentials{})

	s.config.ReadTimeout = 5
	s.config.WriteTimeout = 45
	hs := s.buildHTTPServer("127.0.0.1:0")
	if hs.ReadTimeout != 5*time.Second || hs.WriteTimeout != 45*time.Second {
		t.Errorf("timeouts = %v/%v, want 5s/45s", hs.ReadTimeout, hs.WriteTimeout)
	}

	s.config.ReadTimeout = 0
	s.config.WriteTimeout = 0
	hs = s.buildHTTPServer("127.0.0.1:0")
	if hs.ReadTimeout != 15*time.Second || hs.WriteTimeout != 15*time.Second {
		t.Errorf("unset timeouts = %v/%v, want the 15s defaults", hs.ReadTimeout, hs.WriteTimeout)
	}
}

func TestEvaluateEndpointPlansSetup(t *testing.T) {
	s := newTestServer(t, nil, Credentials{})

	w := doRequest(s, http.MethodPost, "/api/v1/setups/evaluate", evaluateBody(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool            `json:"success"`
		Data    pipeline.Result `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success || resp.Data.Status != pipeline.StatusPlanned {
		t.Errorf("response = %+v, want planned result", resp.Data)
	}
	if resp.Data.Plan == nil || resp.Data.Plan.Position.Shares != 20 {
		t.Errorf("plan = %+v, want 20 shares", resp.Data.Plan)
	}
}

func TestEvaluateEndpointReturnsRejection(t *testing.T) {
	s := newTestServer(t, nil, Credentials{})

	body, _ := json.Marshal(map[string]any{
		"symbol": "XYZ", "price": 10.0, "volume": 1000, "avg_volume": 8000000,
	})
	w := doRequest(s, http.MethodPost, "/api/v1/setups/evaluate", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("rejections are still 200, got %d", w.Code)
	}

	var resp struct {
		Data pipeline.Result `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Data.Status != pipeline.StatusRejected {
		t.Errorf("status = %q, want rejected", resp.Data.Status)
	}
	if len(resp.Data.Reasons) == 0 {
		t.Error("rejection should carry reasons")
	}
}

func TestEvaluateEndpointRejectsBadBody(t *testing.T) {
	s := newTestServer(t, nil, Credentials{})

	w := doRequest(s, http.MethodPost, "/api/v1/setups/evaluate", []byte("not json"), "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPatternEndpoints(t *testing.T) {
	s := newTestServer(t, nil, Credentials{})

	w := doRequest(s, http.MethodGet, "/api/v1/patterns", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("bad list body: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0]["pattern_id"] != "low_float_squeezer" {
		t.Errorf("patterns = %v, want the one loaded pattern", list.Data)
	}

	if w := doRequest(s, http.MethodGet, "/api/v1/patterns/low_float_squeezer", nil, ""); w.Code != http.StatusOK {
		t.Errorf("get status = %d, want 200", w.Code)
	}
	if w := doRequest(s, http.MethodGet, "/api/v1/patterns/nope", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown pattern status = %d, want 404", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil, Credentials{})

	w := doRequest(s, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSignalsWithoutPersistence(t *testing.T) {
	s := newTestServer(t, nil, Credentials{})

	if w := doRequest(s, http.MethodGet, "/api/v1/signals/recent", nil, ""); w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501 when persistence is disabled", w.Code)
	}
}

func TestAuthProtectsEvaluate(t *testing.T) {
	passwords := auth.NewPasswordManager(4, 8)
	hash, err := passwords.HashPassword("Op3rator!pass")
	if err != nil {
		t.Fatal(err)
	}
	jwtManager := auth.NewJWTManager("test-secret", 15*time.Minute)
	s := newTestServer(t, jwtManager, Credentials{Username: "operator", PasswordHash: hash})

	if w := doRequest(s, http.MethodPost, "/api/v1/setups/evaluate", evaluateBody(), ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}

	badLogin := []byte(`{"username": "operator", "password": "wrong"}`)
	if w := doRequest(s, http.MethodPost, "/api/v1/auth/login", badLogin, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", w.Code)
	}

	login := []byte(fmt.Sprintf(`{"username": "operator", "password": %q}`, "Op3rator!pass"))
	w := doRequest(s, http.MethodPost, "/api/v1/auth/login", login, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var resp auth.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad login body: %v", err)
	}

	if w := doRequest(s, http.MethodPost, "/api/v1/setups/evaluate", evaluateBody(), resp.AccessToken); w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", w.Code)
	}
}
