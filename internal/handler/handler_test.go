package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.MaxBodyBytes = 1 << 20
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 3600
	cfg.Optimizer.Days = 5
	cfg.Optimizer.DayHours = 12
	cfg.Optimizer.PopulationSize = 100
	cfg.Optimizer.MaxGenerations = 5000
	cfg.Optimizer.MinFitness = 0.999
	cfg.Optimizer.MaxRepeat = 9999
	cfg.Optimizer.NumberOfCrossoverPoints = 2
	cfg.Optimizer.MutationSize = 2
	cfg.Optimizer.CrossoverProbability = 80
	cfg.Optimizer.MutationProbability = 3
	cfg.Optimizer.CrossoverMode = "kpoint"
	cfg.Optimizer.ScaleFactor = 0.5

	h, err := NewHandler(cfg, nil, nil, nil)
	require.NoError(t, err)
	h.RegisterRoutes()
	return h
}

func (h *Handler) testCookie(t *testing.T, userID int64, role domain.Role) *http.Cookie {
	t.Helper()

	token, err := h.newToken(userID, role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return &http.Cookie{Name: tokenCookieName, Value: token}
}

func serve(h *Handler, method string, path string, body string, cookie *http.Cookie) Response {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	var resp Response
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	return resp
}

func TestLoginRequiresFields(t *testing.T) {
	h := newTestHandler(t)

	resp := serve(h, http.MethodPost, "/auth/login", `{"username": "admin"}`, nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "必填")

	resp = serve(h, http.MethodPost, "/auth/login", `not json`, nil)
	assert.False(t, resp.Success)
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
}

func TestAuthMiddleware(t *testing.T) {
	h := newTestHandler(t)

	resp := serve(h, http.MethodGet, "/timetables", "", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "用户未登录", resp.Message)

	resp = serve(h, http.MethodGet, "/timetables", "", &http.Cookie{Name: tokenCookieName, Value: "garbage"})
	assert.False(t, resp.Success)
	assert.Equal(t, "无效的令牌", resp.Message)

	// 使用其他密钥签发的令牌
	other := newTestHandler(t)
	other.config.JWT.Secret = "another-secret"
	resp = serve(h, http.MethodGet, "/timetables", "", other.testCookie(t, 1, domain.RoleAdmin))
	assert.Equal(t, "无效的令牌", resp.Message)
}

func TestUsersRequireAdmin(t *testing.T) {
	h := newTestHandler(t)

	resp := serve(h, http.MethodGet, "/users", "", h.testCookie(t, 2, domain.RolePlanner))
	assert.False(t, resp.Success)
	assert.Equal(t, "权限不足", resp.Message)

	// 通过权限检查之后请求体校验失败，不会访问数据库
	resp = serve(h, http.MethodPost, "/users", `{"username": "zhangwei", "fullName": "张伟", "email": "zw@example.com", "role": "助理"}`, h.testCookie(t, 1, domain.RoleAdmin))
	assert.False(t, resp.Success)
	assert.NotEqual(t, "权限不足", resp.Message)
}

func TestTimetableRunIDMustBeNumeric(t *testing.T) {
	h := newTestHandler(t)

	resp := serve(h, http.MethodGet, "/timetables/abc", "", h.testCookie(t, 1, domain.RolePlanner))
	assert.False(t, resp.Success)
	assert.Equal(t, "排课任务ID无效", resp.Message)
}

const validCatalogue = `{
	"professors": [{"id": 1, "name": "张伟"}],
	"courses": [{"id": 1, "name": "高等数学"}],
	"groups": [{"id": 1, "name": "计科一班", "size": 30}],
	"rooms": [{"name": "A101", "size": 60}],
	"classes": [{"professor": 1, "course": 1, "duration": 2, "groups": 1}]
}`

func TestCreateTimetableRunRejectsInvalidInput(t *testing.T) {
	h := newTestHandler(t)
	cookie := h.testCookie(t, 1, domain.RolePlanner)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"catalogue": ` + validCatalogue + `}`},
		{"missing catalogue", `{"name": "2024 秋季学期"}`},
		{"bad notify email", `{"name": "2024 秋季学期", "notifyEmail": "nobody", "catalogue": ` + validCatalogue + `}`},
		{"unknown crossover mode", `{"name": "2024 秋季学期", "catalogue": ` + validCatalogue + `, "parameters": {"crossoverMode": "uniform"}}`},
		{"population too small", `{"name": "2024 秋季学期", "catalogue": ` + validCatalogue + `, "parameters": {"populationSize": 1}}`},
		{"probability out of range", `{"name": "2024 秋季学期", "catalogue": ` + validCatalogue + `, "parameters": {"mutationProbability": 150}}`},
		{"no rooms", `{"name": "2024 秋季学期", "catalogue": {"professors": [{"id": 1, "name": "张伟"}], "courses": [{"id": 1}], "classes": [{"professor": 1, "course": 1}]}}`},
		{"class longer than a day", `{"name": "2024 秋季学期", "catalogue": {"dayHours": 2, "professors": [{"id": 1, "name": "张伟"}], "courses": [{"id": 1}], "rooms": [{"name": "A101", "size": 60}], "classes": [{"professor": 1, "course": 1, "duration": 3}]}}`},
		{"unknown professor", `{"name": "2024 秋季学期", "catalogue": [{"prof": {"id": 1, "name": "张伟"}}, {"course": {"id": 1, "name": "高等数学"}}, {"room": {"name": "A101", "size": 60}}, {"class": {"professor": 9, "course": 1}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(h, http.MethodPost, "/timetables", tt.body, cookie)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
			assert.NotEqual(t, "服务器内部错误", resp.Message)
		})
	}
}

func TestRecovererHandlesPanic(t *testing.T) {
	h := newTestHandler(t)
	h.Mux.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
