package echoapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/report"
	"github.com/trezcool/hudhuria/core/settings"
	"github.com/trezcool/hudhuria/core/user"
	emailsvc "github.com/trezcool/hudhuria/services/email"
	smssvc "github.com/trezcool/hudhuria/services/sms"
	inmemdb "github.com/trezcool/hudhuria/storage/database/inmem"
	"github.com/trezcool/hudhuria/storage/fotostore"
	testutil "github.com/trezcool/hudhuria/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

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

type apiTestEnv struct {
	usrRepo   user.Repository
	classRepo classroom.Repository
	attRepo   attendance.Repository
	usrSvc    *user.Service
	conf      *core.Config
}

func setupServer(t *testing.T) (*Server, *apiTestEnv) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassroomRepository(db)
	attRepo := inmemdb.NewAttendanceRepository(db)
	smsLogRepo := inmemdb.NewSMSLogRepository(db)
	settingsRepo := inmemdb.NewSettingsRepository(db)

	conf := testutil.NewConfig()
	logger := testutil.NopLogger{}

	validate := validator.New()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator(enLocale.Locale())
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	ext := testutil.NewExtractor()
	photos, err := fotostore.New(t.TempDir())
	if err != nil {
		t.Fatalf("fotostore.New() failed: %v", err)
	}

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	smsSvc := smssvc.NewConsoleServiceMock(smsLogRepo, logger)

	usrSvc := user.NewService(usrRepo, ext, mailSvc, conf, validate)
	classSvc := classroom.NewService(classRepo, usrSvc, validate)
	attSvc := attendance.NewService(attRepo, classSvc, usrSvc, ext, photos, smsSvc, conf, logger, validate)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		ClassSvc:       classSvc,
		AttendanceSvc:  attSvc,
		ReportSvc:      report.NewService(attSvc),
		SettingsSvc:    settings.NewService(settingsRepo),
		SMSSvc:         smsSvc,
		SMSLogRepo:     smsLogRepo,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	env := &apiTestEnv{usrRepo: usrRepo, classRepo: classRepo, attRepo: attRepo, usrSvc: usrSvc, conf: conf}
	return server, env
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

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// b64Image encodes img the way browser clients ship camera frames.
func b64Image(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("b64Image() failed: %v", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	t.Helper()
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
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
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
		t.Errorf("failed! data = %s; wantData %s", rec.Body.Bytes(), tt.wantData)
	}
}
