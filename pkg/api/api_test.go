package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockContract for testing
type MockContract struct {
	mock.Mock
}

func (m *MockContract) Status(ctx context.Context) ([]domain.TargetStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TargetStatus), args.Error(1)
}

func (m *MockContract) TargetStatus(ctx context.Context, id string) (domain.TargetStatus, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.TargetStatus), args.Error(1)
}

func (m *MockContract) ProposeConfig(ctx context.Context, id string, record domain.ConfigRecord) (uint64, error) {
	args := m.Called(ctx, id, record)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockContract) StartTarget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockContract) StopTarget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *APIError       `json:"error"`
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(method, path, reader))

	var response envelope
	if recorder.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	}
	return recorder, response
}

func intPtr(v int) *int {
	return &v
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(&MockContract{}, nil, logging.NewNopLogger())

	recorder, response := doRequest(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", response.Status)
}

func TestRouter_ListTargets(t *testing.T) {
	contract := &MockContract{}
	contract.On("Status", mock.Anything).Return([]domain.TargetStatus{
		{Target: "control/watchdog", Kind: "control", LogLevel: "Information", Version: 1},
		{Target: "service/MockService", Kind: "service", LogLevel: "Debug", PollIntervalSeconds: intPtr(10), Version: 3, Phase: "running"},
	}, nil)
	router := NewRouter(contract, nil, logging.NewNopLogger())

	recorder, response := doRequest(t, router, http.MethodGet, "/api/v1/targets", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var statuses []domain.TargetStatus
	require.NoError(t, json.Unmarshal(response.Data, &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "service/MockService", statuses[1].Target)
	assert.Equal(t, uint64(3), statuses[1].Version)
	require.NotNil(t, statuses[1].PollIntervalSeconds)
	assert.Equal(t, 10, *statuses[1].PollIntervalSeconds)
}

func TestRouter_GetTarget(t *testing.T) {
	contract := &MockContract{}
	contract.On("TargetStatus", mock.Anything, "pool/mywebapipool").
		Return(domain.TargetStatus{Target: "pool/mywebapipool", Kind: "pool", Version: 2}, nil)
	contract.On("TargetStatus", mock.Anything, "pool/Missing").
		Return(domain.TargetStatus{}, errors.NewUnknownTargetError("target not registered", nil))
	router := NewRouter(contract, nil, logging.NewNopLogger())

	recorder, response := doRequest(t, router, http.MethodGet, "/api/v1/targets/pool/mywebapipool", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var status domain.TargetStatus
	require.NoError(t, json.Unmarshal(response.Data, &status))
	assert.Equal(t, uint64(2), status.Version)

	recorder, response = doRequest(t, router, http.MethodGet, "/api/v1/targets/pool/Missing", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "unknown_target", response.Error.Code)
}

func TestRouter_PutConfig(t *testing.T) {
	contract := &MockContract{}
	record := domain.ConfigRecord{TargetKind: "ManagedService", LogLevel: "Warning", PollIntervalSeconds: intPtr(5)}
	contract.On("ProposeConfig", mock.Anything, "service/MockService", record).Return(uint64(4), nil).Once()
	router := NewRouter(contract, nil, logging.NewNopLogger())

	recorder, response := doRequest(t, router, http.MethodPut, "/api/v1/targets/service/MockService/config",
		`{"target_kind":"ManagedService","log_level":"Warning","poll_interval_seconds":5}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result proposeResponse
	require.NoError(t, json.Unmarshal(response.Data, &result))
	assert.Equal(t, proposeResponse{Target: "service/MockService", Version: 4}, result)
	contract.AssertExpectations(t)
}

func TestRouter_PutConfigRejected(t *testing.T) {
	contract := &MockContract{}
	contract.On("ProposeConfig", mock.Anything, "pool/mywebapipool", mock.Anything).
		Return(uint64(0), errors.NewInvalidConfigError("poll interval must be positive", nil))
	router := NewRouter(contract, nil, logging.NewNopLogger())

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed json", body: `{"target_kind":`, code: "validation"},
		{name: "unknown field", body: `{"target_kind":"pool","log_level":"Debug","restart":true}`, code: "validation"},
		{name: "missing level", body: `{"target_kind":"pool"}`, code: "invalid_config"},
		{name: "unknown kind", body: `{"target_kind":"Daemon","log_level":"Debug"}`, code: "invalid_config"},
		{name: "unknown level", body: `{"target_kind":"pool","log_level":"Loud"}`, code: "invalid_config"},
		{name: "store rejection", body: `{"target_kind":"pool","log_level":"Debug","poll_interval_seconds":0}`, code: "invalid_config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder, response := doRequest(t, router, http.MethodPut, "/api/v1/targets/pool/mywebapipool/config", tt.body)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			require.NotNil(t, response.Error)
			assert.Equal(t, tt.code, response.Error.Code)
		})
	}

	contract.AssertNumberOfCalls(t, "ProposeConfig", 1)
}

func TestRouter_Commands(t *testing.T) {
	contract := &MockContract{}
	contract.On("StartTarget", mock.Anything, "service/MockService").Return(nil).Once()
	contract.On("StopTarget", mock.Anything, "service/MockService").
		Return(errors.NewTimeoutError("service did not stop", nil)).Once()
	contract.On("StartTarget", mock.Anything, "pool/mywebapipool").
		Return(errors.NewUnsupportedError("target does not support manual commands", nil)).Once()
	router := NewRouter(contract, nil, logging.NewNopLogger())

	recorder, response := doRequest(t, router, http.MethodPost, "/api/v1/targets/service/MockService/start", "")
	require.Equal(t, http.StatusAccepted, recorder.Code)
	var result commandResponse
	require.NoError(t, json.Unmarshal(response.Data, &result))
	assert.Equal(t, commandResponse{Target: "service/MockService", Command: "start"}, result)

	recorder, _ = doRequest(t, router, http.MethodPost, "/api/v1/targets/service/MockService/stop", "")
	assert.Equal(t, http.StatusGatewayTimeout, recorder.Code)

	recorder, _ = doRequest(t, router, http.MethodPost, "/api/v1/targets/pool/mywebapipool/start", "")
	assert.Equal(t, http.StatusNotImplemented, recorder.Code)

	contract.AssertExpectations(t)
}

func TestRouter_Metrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("watchdog_monitor_running 1\n"))
	})
	router := NewRouter(&MockContract{}, metricsHandler, logging.NewNopLogger())

	recorder, _ := doRequest(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "watchdog_monitor_running")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errors.NewValidationError("bad", nil), http.StatusBadRequest},
		{errors.NewConflictError("busy", nil), http.StatusConflict},
		{errors.NewDriverUnavailableError("no unit", nil), http.StatusBadGateway},
		{errors.NewRestartFailedError("failed", nil), http.StatusBadGateway},
		{errors.NewCancelledError("cancelled", nil), http.StatusServiceUnavailable},
		{io.EOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestServer_ServeUntilCancelled(t *testing.T) {
	router := NewRouter(&MockContract{}, nil, logging.NewNopLogger())
	server, err := NewServer(ServerOptions{Address: "127.0.0.1:0", ShutdownTimeout: time.Second}, router, logging.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()

	response, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
