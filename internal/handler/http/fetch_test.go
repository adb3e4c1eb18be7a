package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/tecolab/ssptime-go/internal/pkg/portal"
	"go.uber.org/zap"
)

type stubFetchService struct {
	result attendance.FetchResult
	err    error
	delay  time.Duration
}

func (s *stubFetchService) Fetch(ctx context.Context, req attendance.FetchRequest) (attendance.FetchResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return attendance.FetchResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return attendance.FetchResult{}, s.err
	}
	return s.result, nil
}

func (s *stubFetchService) Start(ctx context.Context, req attendance.FetchRequest) (<-chan attendance.FetchOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	done := make(chan attendance.FetchOutcome, 1)
	go func() {
		result, err := s.Fetch(ctx, req)
		done <- attendance.FetchOutcome{Result: result, Err: err}
	}()
	return done, nil
}

func sampleResult() attendance.FetchResult {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	record := attendance.AttendanceRecord{
		Date:          date,
		ClockIn:       time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC),
		ClockOut:      time.Date(2024, 1, 15, 18, 45, 0, 0, time.UTC),
		AnomalyReason: "忘刷卡",
	}
	return attendance.FetchResult{
		Results: []attendance.OvertimeResult{
			{Record: record, OvertimeMinutes: decimal.RequireFromString("35.00")},
		},
		Warnings: []attendance.ParseWarning{},
		Summary:  attendance.Summary{RecordDays: 1, OvertimeDays: 1},
	}
}

func startFetch(t *testing.T, handler *FetchHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fetch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	NewRouter(handler, "test").ServeHTTP(rec, req)
	return rec
}

func jobID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Data.ID)
	return payload.Data.ID
}

func getJob(t *testing.T, handler *FetchHandler, id string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fetch/"+id, nil)
	rec := httptest.NewRecorder()
	NewRouter(handler, "test").ServeHTTP(rec, req)

	var payload struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec.Code, payload.Data
}

func TestStartFetch_CompletesJob(t *testing.T) {
	handler := NewFetchHandler(&stubFetchService{result: sampleResult()}, zap.NewNop())

	rec := startFetch(t, handler, `{"account":"A123456","secret":"hunter2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := jobID(t, rec)

	require.Eventually(t, func() bool {
		_, data := getJob(t, handler, id)
		return data["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	code, data := getJob(t, handler, id)
	assert.Equal(t, http.StatusOK, code)
	assert.NotNil(t, data["result"])
}

func TestStartFetch_ValidationError(t *testing.T) {
	handler := NewFetchHandler(&stubFetchService{}, zap.NewNop())

	rec := startFetch(t, handler, `{"account":"","secret":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStartFetch_ConflictWhileRunning(t *testing.T) {
	handler := NewFetchHandler(&stubFetchService{
		result: sampleResult(),
		delay:  300 * time.Millisecond,
	}, zap.NewNop())

	rec := startFetch(t, handler, `{"account":"A123456","secret":"hunter2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = startFetch(t, handler, `{"account":"A123456","secret":"hunter2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartFetch_FailedJobCategory(t *testing.T) {
	handler := NewFetchHandler(&stubFetchService{err: portal.ErrInvalidCredentials}, zap.NewNop())

	rec := startFetch(t, handler, `{"account":"A123456","secret":"bad"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := jobID(t, rec)

	require.Eventually(t, func() bool {
		_, data := getJob(t, handler, id)
		return data["status"] == "failed"
	}, 2*time.Second, 10*time.Millisecond)

	_, data := getJob(t, handler, id)
	assert.Equal(t, "invalid_credentials", data["error"])
}

func TestGetFetch_NotFound(t *testing.T) {
	handler := NewFetchHandler(&stubFetchService{}, zap.NewNop())
	code, _ := getJob(t, handler, "missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCancelFetch(t *testing.T) {
	handler := NewFetchHandler(&stubFetchService{
		result: sampleResult(),
		delay:  5 * time.Second,
	}, zap.NewNop())

	rec := startFetch(t, handler, `{"account":"A123456","secret":"hunter2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := jobID(t, rec)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/fetch/"+id, nil)
	cancelRec := httptest.NewRecorder()
	NewRouter(handler, "test").ServeHTTP(cancelRec, req)
	require.Equal(t, http.StatusOK, cancelRec.Code)

	require.Eventually(t, func() bool {
		_, data := getJob(t, handler, id)
		return data["status"] == "failed"
	}, 2*time.Second, 10*time.Millisecond)

	_, data := getJob(t, handler, id)
	assert.Equal(t, "cancelled", data["error"])
	assert.Nil(t, data["result"])
}
