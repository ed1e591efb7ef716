package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"canlaw/internal/casefile"
	"canlaw/internal/casefile/handler/mocks"
	"canlaw/internal/jwtauth"
	"canlaw/pkg/domain"
	dErrors "canlaw/pkg/domain-errors"
)

type mockedAPI struct {
	router  http.Handler
	service *mocks.MockService
	status  *mocks.MockStatusReporter
	token   string
}

func newMockedAPI(t *testing.T) *mockedAPI {
	t.Helper()
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	status := mocks.NewMockStatusReporter(ctrl)
	tokens := jwtauth.New("test-signing-key", "canlaw", "canlaw-api")
	token, err := tokens.IssueToken("intake-service", time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(service, status, tokens, logger).Register(r)
	return &mockedAPI{router: r, service: service, status: status, token: token}
}

func (a *mockedAPI) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestServiceErrorMapping(t *testing.T) {
	id := domain.NewCaseID()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"contended lock maps to conflict", dErrors.New(dErrors.CodeConflict, "case is being evaluated"), http.StatusConflict},
		{"cycle maps to internal", dErrors.New(dErrors.CodeInvariantViolation, "dependency cycle"), http.StatusInternalServerError},
		{"unknown case maps to not found", dErrors.New(dErrors.CodeNotFound, "case not found"), http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newMockedAPI(t)
			api.service.EXPECT().
				EvaluateAll(gomock.Any(), id).
				Return(nil, tc.err)

			rec := api.post(t, "/v1/cases/"+id.String()+"/evaluate", "")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestInternalErrorBodyOmitsDetail(t *testing.T) {
	id := domain.NewCaseID()
	api := newMockedAPI(t)
	api.service.EXPECT().
		EvaluateAll(gomock.Any(), id).
		Return(nil, dErrors.New(dErrors.CodeInvariantViolation, "dependency cycle: a -> b -> a"))

	rec := api.post(t, "/v1/cases/"+id.String()+"/evaluate", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invariant_violation", body["error"])
	assert.NotContains(t, body, "error_description")
}

func TestStatusFailureDegradesRead(t *testing.T) {
	id := domain.NewCaseID()
	c := casefile.NewCase(id, "", "", time.Now().UTC())
	api := newMockedAPI(t)
	api.service.EXPECT().GetCase(gomock.Any(), id).Return(c, nil)
	api.status.EXPECT().
		Status(gomock.Any(), c).
		Return(casefile.Status(""), dErrors.New(dErrors.CodeInternal, "registry down"))

	req := httptest.NewRequest(http.MethodGet, "/v1/cases/"+id.String(), nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Status)
}
