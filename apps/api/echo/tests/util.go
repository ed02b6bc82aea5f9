package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/fourmis/apps/api/echo"
	"github.com/trezcool/fourmis/core/user"
	"github.com/trezcool/fourmis/tests"
)

type (
	httpErr struct {
		Error string `json:"error"`
	}

	httpTest struct {
		name     string
		method   string
		path     string
		body     []byte
		token    string
		wantCode int
		wantData []byte
	}
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type env struct {
	*testutil.Services
	app *Server
}

func setup(t *testing.T) env {
	t.Helper()

	s := testutil.NewServices(testutil.PrepareDB(t))
	app := NewServer(ServerDeps{
		Conf:            s.Conf,
		Logger:          s.Logger,
		Validate:        s.Validate,
		Translator:      s.Translator,
		UserSvc:         s.Users,
		MemberSvc:       s.Members,
		MissionSvc:      s.Missions,
		RegistrationSvc: s.Registrations,
		DashboardSvc:    s.Dashboard,
	})
	t.Cleanup(func() {
		_ = app.Shutdown(context.Background())
	})
	return env{Services: s, app: app}
}

// serve runs the request through the app.
func (e env) serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

// tokenFor returns a token authenticating the owner of a member profile.
func (e env) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	usr, err := e.Users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return e.getToken(t, usr)
}

func (e env) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := e.app.GenerateToken(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (e env) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
