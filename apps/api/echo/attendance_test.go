package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/user"
	testutil "github.com/trezcool/hudhuria/tests"
)

// Test_AttendanceFlow walks the kiosk path end to end: enroll a face over
// the API, mark attendance with the same frame, then inspect the day.
func Test_AttendanceFlow(t *testing.T) {
	server, env := setupServer(t)

	teacher := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher@test.cd", "S3cretss", user.RoleTeacher)
	student := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@test.cd", "S3cretss", user.RoleStudent)
	cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", teacher.ID, classroom.Schedule{}, 15)
	testutil.Enroll(t, env.classRepo, cls.ID, student.ID)

	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)
	frame := b64Image(t, testutil.FaceImage(1))

	t.Run("face register", func(t *testing.T) {
		body := marshallObj(t, FaceEnrollRequest{UserID: student.ID, FaceImages: []string{frame}})
		req, rec := newAuthRequest(http.MethodPost, "/api/face/register", teacherToken, body)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]interface{}{
				"message":          "Face registered successfully",
				"images_processed": 1,
			}),
		}, rec)
	})

	t.Run("face register is staff only", func(t *testing.T) {
		body := marshallObj(t, FaceEnrollRequest{UserID: student.ID, FaceImages: []string{frame}})
		req, rec := newAuthRequest(http.MethodPost, "/api/face/register", studentToken, body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("face detect", func(t *testing.T) {
		body := marshallObj(t, FaceImageRequest{FaceImage: frame})
		req, rec := newAuthRequest(http.MethodPost, "/api/face/detect", studentToken, body)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]bool{"face_detected": true}),
		}, rec)
	})

	t.Run("face recognize", func(t *testing.T) {
		body := marshallObj(t, FaceRecognizeRequest{ClassID: cls.ID, FaceImage: frame})
		req, rec := newAuthRequest(http.MethodPost, "/api/face/recognize", teacherToken, body)
		server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res attendance.RecognitionResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !res.Recognized || res.StudentID != student.ID {
			t.Errorf("res = %+v; want a match for %s", res, student.ID)
		}
	})

	t.Run("mark attendance", func(t *testing.T) {
		body := marshallObj(t, AttendanceMarkRequest{ClassID: cls.ID, FaceImage: frame, DeviceID: "kiosk-1"})
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", teacherToken, body)
		server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var resp struct {
			Message    string            `json:"message"`
			Attendance attendance.Record `json:"attendance"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Attendance.StudentID != student.ID {
			t.Errorf("marked %q; want %q", resp.Attendance.StudentID, student.ID)
		}
		if resp.Attendance.Status != attendance.StatusPresent {
			t.Errorf("status = %q; want %q", resp.Attendance.Status, attendance.StatusPresent)
		}
		if resp.Attendance.DeviceID != "kiosk-1" || resp.Attendance.MarkedBy != teacher.ID {
			t.Errorf("attendance = %+v; wrong provenance", resp.Attendance)
		}
	})

	t.Run("second mark same day is rejected", func(t *testing.T) {
		body := marshallObj(t, AttendanceMarkRequest{ClassID: cls.ID, FaceImage: frame})
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", teacherToken, body)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "attendance already marked for today"}),
		}, rec)
	})

	t.Run("unknown face is a 404", func(t *testing.T) {
		body := marshallObj(t, AttendanceMarkRequest{ClassID: cls.ID, FaceImage: b64Image(t, testutil.FlatImage())})
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/mark", teacherToken, body)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "no matching student found"}),
		}, rec)
	})

	t.Run("students only see their own records", func(t *testing.T) {
		other := testutil.CreateUser(t, env.usrRepo, "Bob", "bob@test.cd", "S3cretss", user.RoleStudent)

		req, rec := newAuthRequest(http.MethodGet, "/api/attendance", getToken(t, other))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var recs []attendance.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("recs = %+v; want none for an unmarked student", recs)
		}
	})

	t.Run("today roster", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/attendance/today/"+cls.ID, teacherToken)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var statuses []attendance.TodayStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(statuses) != 1 || statuses[0].Status != attendance.StatusPresent {
			t.Errorf("statuses = %+v; want alice present", statuses)
		}
	})

	t.Run("manual mark", func(t *testing.T) {
		bob := testutil.CreateUser(t, env.usrRepo, "Bob M", "bobm@test.cd", "S3cretss", user.RoleStudent)
		testutil.Enroll(t, env.classRepo, cls.ID, bob.ID)

		body := marshallObj(t, attendance.ManualMark{
			StudentID: bob.ID, ClassID: cls.ID, Status: attendance.StatusAbsent, Notes: "sick",
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/attendance/manual", teacherToken, body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
	})

	t.Run("dashboard stats switch on role", func(t *testing.T) {
		for _, tt := range []struct {
			name, token, wantKey string
		}{
			{"student", studentToken, "total_present"},
			{"teacher", teacherToken, "total_classes"},
		} {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodGet, "/api/dashboard/stats", tt.token)
				server.ServeHTTP(rec, req)
				if rec.Code != http.StatusOK {
					t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
				}
				var data map[string]interface{}
				if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if _, ok := data[tt.wantKey]; !ok {
					t.Errorf("response %v is missing %q", data, tt.wantKey)
				}
			})
		}
	})
}

func Test_ClassroomApi(t *testing.T) {
	server, env := setupServer(t)

	teacher := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher@test.cd", "S3cretss", user.RoleTeacher)
	student := testutil.CreateUser(t, env.usrRepo, "Student", "student@test.cd", "S3cretss", user.RoleStudent)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	var clsID string

	t.Run("create is staff only", func(t *testing.T) {
		body := marshallObj(t, classroom.NewClass{Name: "Physics", Subject: "Science"})
		req, rec := newAuthRequest(http.MethodPost, "/api/classes", studentToken, body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusForbidden)
		}

		req, rec = newAuthRequest(http.MethodPost, "/api/classes", teacherToken, body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var cls classroom.Class
		if err := json.Unmarshal(rec.Body.Bytes(), &cls); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if cls.TeacherID != teacher.ID {
			t.Errorf("cls.TeacherID = %q; want the creator %q", cls.TeacherID, teacher.ID)
		}
		clsID = cls.ID
	})

	t.Run("enroll and list students", func(t *testing.T) {
		body := marshallObj(t, map[string]string{"student_id": student.ID})
		req, rec := newAuthRequest(http.MethodPost, "/api/classes/"+clsID+"/enroll", teacherToken, body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		// double enrollment is rejected
		req, rec = newAuthRequest(http.MethodPost, "/api/classes/"+clsID+"/enroll", teacherToken, body)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "student already enrolled"}),
		}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/api/classes/"+clsID+"/students", teacherToken)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var students []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &students); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(students) != 1 || students[0].ID != student.ID {
			t.Errorf("students = %+v; want only %s", students, student.ID)
		}
	})

	t.Run("students only list their own classes", func(t *testing.T) {
		other := testutil.CreateUser(t, env.usrRepo, "Other", "other@test.cd", "S3cretss", user.RoleStudent)

		req, rec := newAuthRequest(http.MethodGet, "/api/classes", getToken(t, other))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var classes []classroom.Class
		if err := json.Unmarshal(rec.Body.Bytes(), &classes); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(classes) != 0 {
			t.Errorf("classes = %+v; want none for an unenrolled student", classes)
		}
	})

	t.Run("delete is admin only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/classes/"+clsID, teacherToken)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})
}

func Test_SettingsApi(t *testing.T) {
	server, env := setupServer(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", "S3cretss", user.RoleAdmin)
	teacher := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher@test.cd", "S3cretss", user.RoleTeacher)

	t.Run("get returns defaults", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/settings", getToken(t, teacher))
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]interface{}{
				"grace_period_minutes":      15,
				"sms_notifications_enabled": true,
				"late_threshold_minutes":    30,
			}),
		}, rec)
	})

	t.Run("update is admin only", func(t *testing.T) {
		grace := 20
		body := marshallObj(t, map[string]interface{}{"grace_period_minutes": grace})

		req, rec := newAuthRequest(http.MethodPut, "/api/settings", getToken(t, teacher), body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusForbidden)
		}

		req, rec = newAuthRequest(http.MethodPut, "/api/settings", getToken(t, admin), body)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]interface{}{
				"grace_period_minutes":      20,
				"sms_notifications_enabled": true,
				"late_threshold_minutes":    30,
			}),
		}, rec)
	})
}

func Test_SMSApi(t *testing.T) {
	server, env := setupServer(t)

	teacher := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher@test.cd", "S3cretss", user.RoleTeacher)
	token := getToken(t, teacher)

	t.Run("status reports the mock provider", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/sms/status", token)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]interface{}{"sms_enabled": false, "provider": "mocked"}),
		}, rec)
	})

	t.Run("send and inspect the log", func(t *testing.T) {
		body := marshallObj(t, SMSSendRequest{ToPhone: "+243000000001", Message: "hello"})
		req, rec := newAuthRequest(http.MethodPost, "/api/sms/send", token, body)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/api/sms/logs", token)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var logs []map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(logs) != 1 || logs[0]["to_phone"] != "+243000000001" {
			t.Errorf("logs = %+v; want the sent message", logs)
		}
	})
}
