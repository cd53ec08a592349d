package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

func TestHome(t *testing.T) {
	srv := newServer(stubService{})
	runHTTPTests(t, srv, []httpTest{
		{name: "welcome", method: http.MethodGet, path: "/", wantCode: http.StatusOK},
	})
}

func Test_planApi_generate(t *testing.T) {
	a := setup(t)
	token := getToken(t, "u1")

	runHTTPTests(t, a, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/plan/generate",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Nothing to plan", method: http.MethodPost, path: "/v1/plan/generate", token: getToken(t, "u2"),
			wantCode: http.StatusUnprocessableEntity,
			wantData: []byte(`{"state":"nothing_to_plan","reason":"no active courses"}`),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/plan/generate", token)
	a.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out plan.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.PlanVersion)
	assert.Len(t, out.Days, 7)
	assert.Equal(t, 7.0, out.Metrics.TotalRequiredHours)
	assert.Equal(t, 14.0, out.Metrics.TotalAvailableHours)
	assert.NotNil(t, out.Metrics.Warnings)
	for _, d := range out.Days {
		for _, it := range d.Items {
			assert.NotEmpty(t, it.ID)
			assert.NotEmpty(t, it.ReasonCodes)
			assert.NotEmpty(t, it.Summary)
		}
	}

	// the live plan is what generate returned
	req, rec = newAuthRequest(http.MethodGet, "/v1/plan?from=2026-03-02", token)
	a.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, map[string]interface{}{"plan_days": out.Days}))
	require.NoError(t, err)
	assert.True(t, ok)

	req, rec = newAuthRequest(http.MethodPost, "/v1/plan/recreate", token)
	a.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.PlanVersion)
}

func Test_planApi_query(t *testing.T) {
	a := setup(t)

	runHTTPTests(t, a, []httpTest{
		{
			name: "Auth required", method: http.MethodGet, path: "/v1/plan",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Invalid token", method: http.MethodGet, path: "/v1/plan", token: "not-a-token",
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "Invalid from", method: http.MethodGet, path: "/v1/plan?from=02/03/2026", token: getToken(t, "u1"),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"from": "from must be a date formatted as YYYY-MM-DD"}),
		},
		{
			name: "No plan yet", method: http.MethodGet, path: "/v1/plan", token: getToken(t, "u1"),
			wantCode: http.StatusOK, wantData: []byte(`{"plan_days":[]}`),
		},
	})
}

func Test_planApi_toggleItem(t *testing.T) {
	a := setup(t)
	token := getToken(t, "u1")

	out, err := plan.NewService(a.repo, a.locker, core.NewNopLogger(), nil).Generate(context.Background(), "u1")
	require.NoError(t, err)
	item := out.Days[0].Items[0]
	path := "/v1/plan/items/" + item.ID

	runHTTPTests(t, a, []httpTest{
		{
			name: "Auth required", method: http.MethodPatch, path: path, body: []byte(`{"completed":true}`),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Completed required", method: http.MethodPatch, path: path, body: []byte(`{}`), token: token,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"completed":"this field is required"}`),
		},
		{
			name: "Unknown item", method: http.MethodPatch, path: "/v1/plan/items/nope", body: []byte(`{"completed":true}`),
			token: token, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "plan item not found"}),
		},
		{
			name: "Item of another user", method: http.MethodPatch, path: path, body: []byte(`{"completed":true}`),
			token: getToken(t, "u2"), wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "plan item not found"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPatch, path, token, []byte(`{"completed":true}`))
	a.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got schedule.PlanItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, item.ID, got.ID)
	assert.True(t, got.IsCompleted)
	assert.NotNil(t, got.CompletedAt)

	topic, err := a.repo.GetTopic(context.Background(), "u1", item.TopicID)
	require.NoError(t, err)
	assert.NotEqual(t, schedule.TopicNotStarted, topic.Status)
}

func Test_planApi_errors(t *testing.T) {
	token := getToken(t, "u1")
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantData []byte
	}{
		{
			name: "locked", err: core.ErrLocked, wantCode: http.StatusConflict,
			wantData: []byte(`{"error":"another plan operation is running for this user"}`),
		},
		{
			name: "persistence", err: &plan.PersistenceError{Err: errors.New("connection reset")}, wantCode: http.StatusServiceUnavailable,
			wantData: []byte(`{"error":"the plan could not be saved, please retry"}`),
		},
		{
			name: "nothing to plan", err: &schedule.NoHorizonError{Reason: "every exam has already passed"},
			wantCode: http.StatusUnprocessableEntity,
			wantData: []byte(`{"state":"nothing_to_plan","reason":"every exam has already passed"}`),
		},
		{
			name: "unexpected", err: errors.New("boom"), wantCode: http.StatusInternalServerError,
			wantData: []byte(`{"error":"Internal Server Error"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(stubService{err: tt.err})
			for _, path := range []string{"/v1/plan/generate", "/v1/plan/recreate"} {
				req, rec := newAuthRequest(http.MethodPost, path, token)
				srv.ServeHTTP(rec, req)
				checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
			}
		})
	}
}

func Test_planApi_corruptedStore(t *testing.T) {
	srv := newServer(stubService{err: &plan.PersistenceError{Err: errors.Wrap(core.NewShutdownError("index corrupted"), "inserting plan item")}})
	req, rec := newAuthRequest(http.MethodPost, "/v1/plan/generate", getToken(t, "u1"))
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusServiceUnavailable,
		wantData: []byte(`{"error":"the plan could not be saved, please retry"}`),
	}, rec)

	select {
	case <-srv.ShutdownSignal():
	default:
		t.Error("server was not asked to shut down")
	}

	srv = newServer(stubService{err: &plan.PersistenceError{Err: errors.New("connection reset")}})
	req, rec = newAuthRequest(http.MethodPost, "/v1/plan/generate", getToken(t, "u1"))
	srv.ServeHTTP(rec, req)
	select {
	case <-srv.ShutdownSignal():
		t.Error("transient failure shut the server down")
	default:
	}
}

func Test_planApi_locked(t *testing.T) {
	a := setup(t)
	release, err := a.locker.Acquire(context.Background(), "u1")
	require.NoError(t, err)
	defer release()

	runHTTPTests(t, a, []httpTest{
		{
			name: "generate while locked", method: http.MethodPost, path: "/v1/plan/generate", token: getToken(t, "u1"),
			wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: core.ErrLocked.Error()}),
		},
	})
}
