package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/membership"
	"github.com/mateatletas/backend/core/user"
	logsvc "github.com/mateatletas/backend/services/logger"
	inmemdb "github.com/mateatletas/backend/storage/database/inmem"
	testutil "github.com/mateatletas/backend/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf    *core.Config
	usrRepo user.Repository
	mbRepo  membership.Repository
}

func setup(t *testing.T, configure ...func(conf *core.Config)) testApp {
	t.Helper()
	conf := testutil.NewConfig()
	for _, fn := range configure {
		fn(conf)
	}

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	mbRepo := inmemdb.NewMembershipRepository(db)
	return testApp{Server: newTestServer(t, conf, usrRepo, mbRepo), conf: conf, usrRepo: usrRepo, mbRepo: mbRepo}
}

func newTestServer(t *testing.T, conf *core.Config, usrRepo user.Repository, mbRepo membership.Repository) *Server {
	t.Helper()
	usrSvc := user.NewService(usrRepo)
	validate, translator := testutil.NewValidator()

	reg := prometheus.NewRegistry()
	srv, err := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logsvc.NewDiscardLogger(),
		UserSvc:       usrSvc,
		MembershipSvc: membership.NewService(mbRepo, usrSvc, conf.Location()),
		Validate:      validate,
		Translator:    translator,
		Registerer:    reg,
		Gatherer:      reg,
	})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return srv
}

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
	extra    interface{}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app testApp) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, app testApp, usr user.User) string {
	t.Helper()
	token, err := app.auth.userToken(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
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
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, "body: %s", rec.Body.String())
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

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}
