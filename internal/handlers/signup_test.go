package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/elevenfingers-auth/internal/models"
	"github.com/sbilibin2017/elevenfingers-auth/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestSignupHandler(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		mockSetup    func(m *MockSignuper)
		expectedCode int
		expectedBody string
	}{
		{
			name: "success",
			body: `{"email":"john@example.com","username":"john","password":"secret"}`,
			mockSetup: func(m *MockSignuper) {
				m.EXPECT().
					Signup(gomock.Any(), "john@example.com", "john", "secret").
					Return(&models.User{ID: 1, Email: "john@example.com", Username: "john"}, nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `{"id":1,"email":"john@example.com","username":"john"}`,
		},
		{
			name: "email already in use",
			body: `{"email":"alice@example.com","username":"alice","password":"pass"}`,
			mockSetup: func(m *MockSignuper) {
				m.EXPECT().
					Signup(gomock.Any(), "alice@example.com", "alice", "pass").
					Return(nil, services.ErrEmailAlreadyExists)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Email already in use"}`,
		},
		{
			name: "username already in use",
			body: `{"email":"new@example.com","username":"alice","password":"pass"}`,
			mockSetup: func(m *MockSignuper) {
				m.EXPECT().
					Signup(gomock.Any(), "new@example.com", "alice", "pass").
					Return(nil, services.ErrUsernameAlreadyExists)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Username already in use"}`,
		},
		{
			name: "internal server error",
			body: `{"email":"bob@example.com","username":"bob","password":"pass"}`,
			mockSetup: func(m *MockSignuper) {
				m.EXPECT().
					Signup(gomock.Any(), "bob@example.com", "bob", "pass").
					Return(nil, errors.New("database failure"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Internal server error"}`,
		},
		{
			name:         "multibyte password over 72 bytes",
			body:         `{"email":"ann@example.com","username":"ann","password":"` + strings.Repeat("é", 72) + `"}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name: "ascii password of exactly 72 bytes",
			body: `{"email":"ann@example.com","username":"ann","password":"` + strings.Repeat("a", 72) + `"}`,
			mockSetup: func(m *MockSignuper) {
				m.EXPECT().
					Signup(gomock.Any(), "ann@example.com", "ann", strings.Repeat("a", 72)).
					Return(&models.User{ID: 9, Email: "ann@example.com", Username: "ann"}, nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `{"id":9,"email":"ann@example.com","username":"ann"}`,
		},
		{
			name: "password rejected by service",
			body: `{"email":"ann@example.com","username":"ann","password":"pw"}`,
			mockSetup: func(m *MockSignuper) {
				m.EXPECT().
					Signup(gomock.Any(), "ann@example.com", "ann", "pw").
					Return(nil, services.ErrPasswordTooLong)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name:         "invalid json",
			body:         "{invalid json}",
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name:         "missing password",
			body:         `{"email":"john@example.com","username":"john"}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name:         "malformed email",
			body:         `{"email":"not-an-email","username":"john","password":"secret"}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockSvc := NewMockSignuper(ctrl)
			if tt.mockSetup != nil {
				tt.mockSetup(mockSvc)
			}

			handler := NewSignupHandler(mockSvc)

			req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			handler(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestSignupHandler_NeverReturnsPasswordHash(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSvc := NewMockSignuper(ctrl)
	mockSvc.EXPECT().Signup(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.User{ID: 3, Email: "eve@example.com", Username: "eve"}, nil)

	body, _ := json.Marshal(SignupRequest{Email: "eve@example.com", Username: "eve", Password: "hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	NewSignupHandler(mockSvc)(rr, req)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"id", "email", "username"}, keys(resp))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
