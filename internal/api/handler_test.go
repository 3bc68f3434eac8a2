package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zhejian/url-shortener/qrform/internal/api"
	"github.com/zhejian/url-shortener/qrform/internal/auth"
	"github.com/zhejian/url-shortener/qrform/internal/middleware"
	"github.com/zhejian/url-shortener/qrform/internal/model"
	"github.com/zhejian/url-shortener/qrform/internal/payload"
	"github.com/zhejian/url-shortener/qrform/internal/service"
)

// MockFormService mocks the service layer
type MockFormService struct {
	mock.Mock
}

func (m *MockFormService) Submit(ctx context.Context, in service.SubmitInput) (*model.SubmitResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SubmitResponse), args.Error(1)
}

func (m *MockFormService) Result(ctx context.Context, code string) (*model.ResultResponse, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResultResponse), args.Error(1)
}

func (m *MockFormService) History(ctx context.Context, sessionID string, limit int) ([]model.ResultResponse, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ResultResponse), args.Error(1)
}

func (m *MockFormService) QRCode(ctx context.Context, code string, size int) ([]byte, error) {
	args := m.Called(ctx, code, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFormService) Form(caller auth.Context, kind string) (*model.FormSchema, error) {
	args := m.Called(caller, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FormSchema), args.Error(1)
}

func (m *MockFormService) Remove(ctx context.Context, sessionID, code string) error {
	args := m.Called(ctx, sessionID, code)
	return args.Error(0)
}

// MockDB for health check
type MockDB struct {
	shouldFail bool
}

func (m *MockDB) Ping(ctx context.Context) error {
	if m.shouldFail {
		return assert.AnError
	}
	return nil
}

// MockCache for health check
type MockCache struct {
	shouldFail bool
}

func (m *MockCache) Ping(ctx context.Context) error {
	if m.shouldFail {
		return assert.AnError
	}
	return nil
}

var verifier = auth.NewVerifier("secret", "")

func setupRouter(svc service.FormServiceInterface, db api.DBInterface, cache api.CacheInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()
	r.Use(
		middleware.Session("qrform_sid", time.Hour, false),
		middleware.Auth(verifier, "session", logger),
	)
	api.NewHandler(svc, db, cache, logger).RegisterRoutes(r)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		dbFail     bool
		cacheFail  bool
		wantCode   int
		wantStatus string
		wantDB     string
		wantCache  string
	}{
		{"returns ok when all dependencies are healthy", false, false, http.StatusOK, "ok", "up", "up"},
		{"returns degraded when cache is down", false, true, http.StatusServiceUnavailable, "degraded", "up", "down"},
		{"returns degraded when database is down", true, false, http.StatusServiceUnavailable, "degraded", "down", "up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(new(MockFormService), &MockDB{shouldFail: tt.dbFail}, &MockCache{shouldFail: tt.cacheFail})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantStatus, response["status"])
			deps := response["dependencies"].(map[string]interface{})
			assert.Equal(t, tt.wantDB, deps["database"])
			assert.Equal(t, tt.wantCache, deps["cache"])
		})
	}
}

func TestHandler_CreateQR(t *testing.T) {
	t.Run("guest submission", func(t *testing.T) {
		svc := new(MockFormService)
		svc.On("Submit", mock.Anything, mock.MatchedBy(func(in service.SubmitInput) bool {
			return !in.Caller.Authenticated && in.Form.URL == "youtube.com" && in.SessionID != ""
		})).Return(&model.SubmitResponse{
			Code:     "abc",
			ShortURL: "http://sho.rt/abc",
			Guest:    true,
			ImageURL: "/api/v1/qr/abc/image.png",
			Message:  "QR created (guest mode)",
		}, nil)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/qr", bytes.NewBufferString(`{"kind":"url","url":"youtube.com"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp model.SubmitResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "abc", resp.Code)
		assert.True(t, resp.Guest)
		svc.AssertExpectations(t)
	})

	t.Run("signed in caller is forwarded", func(t *testing.T) {
		token, err := verifier.Sign("ana", time.Hour)
		require.NoError(t, err)
		svc := new(MockFormService)
		svc.On("Submit", mock.Anything, mock.MatchedBy(func(in service.SubmitInput) bool {
			return in.Caller.Authenticated && in.Caller.Subject == "ana" &&
				in.Form.Kind == "wifi" && in.Form.MaxScans == payload.FormValue("5")
		})).Return(&model.SubmitResponse{Code: "w1"}, nil)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/qr", bytes.NewBufferString(`{"kind":"wifi","ssid":"net","max_scans":5}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid body", func(t *testing.T) {
		svc := new(MockFormService)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/qr", bytes.NewBufferString(`{"kind":`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name          string
		err           error
		wantCode      int
		wantNeedLogin bool
	}{
		{"permission denied", &payload.PermissionDeniedError{Reason: payload.ReasonLoginRequired, Field: "kind"}, http.StatusForbidden, true},
		{"login required upstream", &service.RejectionError{Message: "login required", NeedLogin: true}, http.StatusForbidden, true},
		{"missing field", &payload.MissingFieldError{Field: "url"}, http.StatusBadRequest, false},
		{"unsupported kind", &payload.UnsupportedKindError{Kind: "sms"}, http.StatusBadRequest, false},
		{"rejected upstream", &service.RejectionError{Message: "blocked"}, http.StatusBadRequest, false},
		{"creation unavailable", service.ErrCreationUnavailable, http.StatusServiceUnavailable, false},
		{"creation failed", service.ErrCreationFailed, http.StatusBadGateway, false},
		{"unexpected", assert.AnError, http.StatusInternalServerError, false},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFormService)
			svc.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err)
			router := setupRouter(svc, &MockDB{}, &MockCache{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/qr", bytes.NewBufferString(`{"url":"x.io"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantNeedLogin, decodeError(t, w).NeedLogin)
		})
	}
}

func TestHandler_GetForm(t *testing.T) {
	svc := new(MockFormService)
	svc.On("Form", auth.Guest, "wifi").Return(&model.FormSchema{Kind: "url", Kinds: []string{"url"}, Notice: "n"}, nil)
	svc.On("Form", auth.Guest, "").Return(&model.FormSchema{Kind: "url", Kinds: []string{"url"}}, nil)
	router := setupRouter(svc, &MockDB{}, &MockCache{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/form?kind=wifi", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var schema model.FormSchema
	require.NoError(t, json.NewDecoder(w.Body).Decode(&schema))
	assert.Equal(t, "url", schema.Kind)
	assert.Equal(t, "n", schema.Notice)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/form", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_GetResult(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockFormService)
		svc.On("Result", mock.Anything, "abc").Return(&model.ResultResponse{Code: "abc", ShortURL: "http://sho.rt/abc"}, nil)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/qr/abc", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp model.ResultResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "http://sho.rt/abc", resp.ShortURL)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockFormService)
		svc.On("Result", mock.Anything, "nope").Return(nil, service.ErrResultNotFound)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/qr/nope", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_RemoveResult(t *testing.T) {
	sid := "7d444840-9dc0-41d1-b245-5ffdce74fad2"

	t.Run("removes with the caller's session", func(t *testing.T) {
		svc := new(MockFormService)
		svc.On("Remove", mock.Anything, sid, "abc").Return(nil)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/qr/abc", nil)
		req.AddCookie(&http.Cookie{Name: "qrform_sid", Value: sid})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown or foreign code", func(t *testing.T) {
		svc := new(MockFormService)
		svc.On("Remove", mock.Anything, sid, "other").Return(service.ErrResultNotFound)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/qr/other", nil)
		req.AddCookie(&http.Cookie{Name: "qrform_sid", Value: sid})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_DownloadQR(t *testing.T) {
	png := []byte("\x89PNG fake")

	t.Run("attachment with requested size", func(t *testing.T) {
		svc := new(MockFormService)
		svc.On("QRCode", mock.Anything, "abc", 512).Return(png, nil)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/qr/abc/image.png?size=512", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="qr-abc.png"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, png, w.Body.Bytes())
	})

	t.Run("malformed size", func(t *testing.T) {
		svc := new(MockFormService)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/qr/abc/image.png?size=big", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "QRCode", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("out of range size", func(t *testing.T) {
		svc := new(MockFormService)
		svc.On("QRCode", mock.Anything, "abc", 9999).Return(nil, service.ErrInvalidSize)
		router := setupRouter(svc, &MockDB{}, &MockCache{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/qr/abc/image.png?size=9999", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_History(t *testing.T) {
	svc := new(MockFormService)
	svc.On("History", mock.Anything, mock.AnythingOfType("string"), 5).Return([]model.ResultResponse{{Code: "b"}, {Code: "a"}}, nil)
	router := setupRouter(svc, &MockDB{}, &MockCache{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Results []model.ResultResponse `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "b", body.Results[0].Code)
	svc.AssertExpectations(t)
}
