package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"timeclock.org/internal/attendance"
	"timeclock.org/internal/auth"
	"timeclock.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	employee auth.User
	admin    auth.User
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("TIMECLOCK_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	dir := auth.NewInMemoryDirectory()
	employee := dir.AddUser(auth.User{
		OrganizationID: "org-1",
		Username:       "alice",
		Email:          "alice@example.com",
		Role:           auth.RoleEmployee,
		Active:         true,
	})
	admin := dir.AddUser(auth.User{
		OrganizationID: "org-1",
		Username:       "boss",
		Email:          "boss@example.com",
		Role:           auth.RoleAdmin,
		Active:         true,
	})

	api := New(ReadyProbe{}, "test", attendance.NewInMemory(), dir, nil, stream.New(), Options{
		RateBurst:  1000,
		RatePerSec: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:  srv.URL,
		client:   srv.Client(),
		t:        t,
		employee: employee,
		admin:    admin,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(u auth.User) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]string{
		"user_id":         u.ID,
		"organization_id": u.OrganizationID,
		"role":            u.Role,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("obtain token: status %d", resp.StatusCode)
	}
	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if body.Token == "" {
		c.t.Fatal("empty token")
	}
	return map[string]string{"Authorization": "Bearer " + body.Token}
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHealthEndpointsArePublic(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestProtectedEndpointRequiresToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/work/start", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWorkSessionLifecycle(t *testing.T) {
	c := newTestAPI(t)
	headers := c.obtainToken(c.employee)

	resp := c.post("/v1/work/start", nil, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d", resp.StatusCode)
	}
	var started sessionResponse
	decodeBody(t, resp, &started)
	if !started.Session.Open() || started.Session.UserID != c.employee.ID {
		t.Fatalf("unexpected session: %+v", started.Session)
	}

	resp = c.post("/v1/work/start", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double start: expected 409, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/work/break/start", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("break start: expected 200, got %d", resp.StatusCode)
	}
	var onBreak sessionResponse
	decodeBody(t, resp, &onBreak)
	if !onBreak.Session.OnBreak {
		t.Fatal("expected session on break")
	}

	resp = c.post("/v1/work/break/start", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double break: expected 409, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/work/break/end", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("break end: expected 200, got %d", resp.StatusCode)
	}
	var ended breakResponse
	decodeBody(t, resp, &ended)
	if ended.Session.OnBreak {
		t.Fatal("expected break to be folded")
	}
	if ended.BreakLimitExceeded {
		t.Fatal("short break must not exceed the budget")
	}

	resp = c.post("/v1/work/stop", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", resp.StatusCode)
	}
	var stopped sessionResponse
	decodeBody(t, resp, &stopped)
	if stopped.Session.Open() || stopped.Session.EndAt == nil {
		t.Fatalf("expected closed session: %+v", stopped.Session)
	}
	if stopped.Accounting.NetSeconds < 0 {
		t.Fatalf("net seconds must not be negative: %+v", stopped.Accounting)
	}

	resp = c.post("/v1/work/stop", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stop without session: expected 409, got %d", resp.StatusCode)
	}
}

func TestPolicyUpdateRequiresAdmin(t *testing.T) {
	c := newTestAPI(t)
	employee := c.obtainToken(c.employee)
	admin := c.obtainToken(c.admin)

	resp := c.put("/v1/work/policy", map[string]any{"daily_work_minutes": 300}, employee)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("employee policy update: expected 403, got %d", resp.StatusCode)
	}

	resp = c.put("/v1/work/policy", map[string]any{"daily_work_minutes": 300}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin policy update: expected 200, got %d", resp.StatusCode)
	}
	var updated attendance.Policy
	decodeBody(t, resp, &updated)
	if updated.DailyWorkMinutes != 300 {
		t.Fatalf("expected 300 work minutes, got %d", updated.DailyWorkMinutes)
	}

	resp = c.get("/v1/work/policy", nil, employee)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("policy read: expected 200, got %d", resp.StatusCode)
	}
	var seen attendance.Policy
	decodeBody(t, resp, &seen)
	if seen.DailyWorkMinutes != 300 {
		t.Fatalf("expected member to see 300 work minutes, got %d", seen.DailyWorkMinutes)
	}
}

func TestFixedPolicyWithoutTimesRejected(t *testing.T) {
	c := newTestAPI(t)
	admin := c.obtainToken(c.admin)

	resp := c.put("/v1/work/policy", map[string]any{"break_mode": "FIXED"}, admin)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPingAndOnlineUsers(t *testing.T) {
	c := newTestAPI(t)
	employee := c.obtainToken(c.employee)
	admin := c.obtainToken(c.admin)

	resp := c.post("/v1/presence/ping", nil, employee)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping: expected 200, got %d", resp.StatusCode)
	}
	var ping map[string]any
	decodeBody(t, resp, &ping)
	if ping["status"] != string(attendance.PresenceIdle) {
		t.Fatalf("expected idle before clock-in, got %v", ping["status"])
	}

	resp = c.post("/v1/work/start", nil, employee)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/presence/ping", nil, employee)
	decodeBody(t, resp, &ping)
	if ping["status"] != string(attendance.PresenceWorking) {
		t.Fatalf("expected working after clock-in, got %v", ping["status"])
	}

	resp = c.get("/v1/presence/online", nil, employee)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("online as employee: expected 403, got %d", resp.StatusCode)
	}

	resp = c.get("/v1/presence/online", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("online as admin: expected 200, got %d", resp.StatusCode)
	}
	var online struct {
		Items []presenceEntry `json:"items"`
	}
	decodeBody(t, resp, &online)
	found := false
	for _, item := range online.Items {
		if item.UserID == c.employee.ID {
			found = true
			if item.Status != attendance.PresenceWorking {
				t.Fatalf("expected working, got %s", item.Status)
			}
		}
		if item.Status == attendance.PresenceOffline {
			t.Fatal("offline users must not be listed")
		}
	}
	if !found {
		t.Fatal("expected employee in online list")
	}
}

func TestMeReturnsSessionAndStatus(t *testing.T) {
	c := newTestAPI(t)
	employee := c.obtainToken(c.employee)

	resp := c.post("/v1/work/start", nil, employee)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d", resp.StatusCode)
	}

	resp = c.get("/v1/me", nil, employee)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}
	var me map[string]any
	decodeBody(t, resp, &me)
	if me["status"] != string(attendance.PresenceWorking) {
		t.Fatalf("expected working, got %v", me["status"])
	}
	if me["session"] == nil {
		t.Fatal("expected open session in response")
	}
}

func TestWeeklyStatsAndRankings(t *testing.T) {
	c := newTestAPI(t)
	employee := c.obtainToken(c.employee)
	admin := c.obtainToken(c.admin)

	resp := c.post("/v1/work/start", nil, employee)
	resp.Body.Close()
	resp = c.post("/v1/work/stop", nil, employee)
	resp.Body.Close()

	resp = c.get("/v1/admin/weekly-stats", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("weekly-stats: expected 200, got %d", resp.StatusCode)
	}
	var stats weeklyStatsResponse
	decodeBody(t, resp, &stats)
	if len(stats.Items) != 2 {
		t.Fatalf("expected a report per user, got %d", len(stats.Items))
	}

	resp = c.get("/v1/admin/rankings", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rankings: expected 200, got %d", resp.StatusCode)
	}
	var ranked weeklyStatsResponse
	decodeBody(t, resp, &ranked)
	for i := 1; i < len(ranked.Items); i++ {
		if ranked.Items[i-1].Score < ranked.Items[i].Score {
			t.Fatal("rankings must be sorted by descending score")
		}
	}
}

func TestUserDetailNotFound(t *testing.T) {
	c := newTestAPI(t)
	admin := c.obtainToken(c.admin)

	resp := c.get("/v1/admin/users/ghost", nil, admin)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDashboardCountsPresence(t *testing.T) {
	c := newTestAPI(t)
	employee := c.obtainToken(c.employee)
	admin := c.obtainToken(c.admin)

	resp := c.post("/v1/work/start", nil, employee)
	resp.Body.Close()

	resp = c.get("/v1/admin/dashboard", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", resp.StatusCode)
	}
	var dash map[string]any
	decodeBody(t, resp, &dash)
	if dash["total_users"] != float64(2) {
		t.Fatalf("expected 2 users, got %v", dash["total_users"])
	}
	if dash["working"] != float64(1) {
		t.Fatalf("expected 1 working, got %v", dash["working"])
	}
}
