package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/mohamed-arabi16/studybuddy-bright-sub000/apps/api/echo"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
	locksvc "github.com/mohamed-arabi16/studybuddy-bright-sub000/services/lock"
	inmemdb "github.com/mohamed-arabi16/studybuddy-bright-sub000/storage/database/inmem"
	testutil "github.com/mohamed-arabi16/studybuddy-bright-sub000/tests"
)

var (
	conf = &core.Config{Env: "TEST", TestMode: true, AppName: "StudyBuddy", SecretKey: "secret"}

	monday = testutil.Date(2026, 3, 2)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type app struct {
	*Server
	repo   plan.Repository
	locker *locksvc.MemoryLocker
}

func newServer(svc plan.ServiceInterface) *Server {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return NewServer(conf, core.NewNopLogger(), svc, validate, translator)
}

// setup builds a server on an in-memory store where u1 has one course with an exam a week after monday.
func setup(t *testing.T) app {
	prev := plan.NowFunc
	plan.NowFunc = func() time.Time { return monday.Add(8 * time.Hour) }
	t.Cleanup(func() { plan.NowFunc = prev })

	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewPlanRepository(db)
	locker := locksvc.NewMemoryLocker(0)

	testutil.CreateCourse(t, repo, "u1",
		schedule.Course{ID: "c1", Title: "Calculus", ExamDate: monday.AddDate(0, 0, 7)},
		schedule.Topic{ID: "t1", Title: "Limits", EstimatedHours: 3, DifficultyWeight: 3, ExamImportance: 3},
		schedule.Topic{ID: "t2", Title: "Derivatives", EstimatedHours: 4, DifficultyWeight: 4, ExamImportance: 4, PrerequisiteIDs: []string{"t1"}, OrderIndex: 1},
	)
	testutil.SetPreferences(t, repo, "u1", schedule.Preferences{DailyStudyHours: 2})

	svc := plan.NewService(repo, locker, core.NewNopLogger(), nil)
	return app{Server: newServer(svc), repo: repo, locker: locker}
}

// stubService returns err from every operation.
type stubService struct {
	err error
}

func (s stubService) Generate(context.Context, string) (*plan.Outcome, error) { return nil, s.err }
func (s stubService) Recreate(context.Context, string) (*plan.Outcome, error) { return nil, s.err }
func (s stubService) ToggleItemCompletion(context.Context, string, string, bool) (schedule.PlanItem, error) {
	return schedule.PlanItem{}, s.err
}
func (s stubService) Query(context.Context, string, time.Time) ([]schedule.PlanDay, error) {
	return nil, s.err
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, userID string) string {
	token, err := GenerateToken(conf, userID, time.Hour)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, srv http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
