package attendance_test

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/attendance"
	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/face"
	"github.com/trezcool/hudhuria/core/user"
	emailsvc "github.com/trezcool/hudhuria/services/email"
	inmemdb "github.com/trezcool/hudhuria/storage/database/inmem"
	"github.com/trezcool/hudhuria/storage/fotostore"
	testutil "github.com/trezcool/hudhuria/tests"
)

// chanSMS forwards messages to a channel so tests can wait for the
// background guardian notification.
type chanSMS struct {
	ch chan *core.SMSMessage
}

func (s chanSMS) Send(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		s.ch <- msg
	}
}

type testEnv struct {
	svc       *attendance.Service
	usrRepo   user.Repository
	classRepo classroom.Repository
	smsCh     chan *core.SMSMessage
	conf      *core.Config
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassroomRepository(db)
	attRepo := inmemdb.NewAttendanceRepository(db)

	conf := testutil.NewConfig()
	validate := validator.New()
	ext := testutil.NewExtractor()
	logger := testutil.NopLogger{}

	photos, err := fotostore.New(t.TempDir())
	if err != nil {
		t.Fatalf("fotostore.New() failed: %v", err)
	}

	usrSvc := user.NewService(usrRepo, ext, emailsvc.NewConsoleServiceMock(conf), conf, validate)
	classSvc := classroom.NewService(classRepo, usrSvc, validate)

	smsCh := make(chan *core.SMSMessage, 10)
	svc := attendance.NewService(
		attRepo, classSvc, usrSvc, ext, photos, chanSMS{ch: smsCh}, conf, logger, validate,
	)
	return &testEnv{svc: svc, usrRepo: usrRepo, classRepo: classRepo, smsCh: smsCh, conf: conf}
}

func setNow(t *testing.T, now time.Time) {
	t.Helper()
	attendance.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { attendance.NowFunc = time.Now })
}

func (env *testEnv) enrolledStudent(t *testing.T, name, email string, seed int, classID string) user.User {
	t.Helper()
	student := testutil.CreateUser(t, env.usrRepo, name, email, "s3cr3t", user.RoleStudent)
	testutil.EnrollFace(t, env.usrRepo, &student, seed)
	testutil.Enroll(t, env.classRepo, classID, student.ID)
	return student
}

func (env *testEnv) waitForSMS(t *testing.T) *core.SMSMessage {
	t.Helper()
	select {
	case msg := <-env.smsCh:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for guardian sms")
		return nil
	}
}

func Test_Service_Mark(t *testing.T) {
	schedule := classroom.Schedule{Day: "monday", Start: "09:00", End: "10:00"}

	t.Run("within grace period is present", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", schedule, 15)
		student := env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)
		now := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC) // exactly at cutoff
		setNow(t, now)

		rec, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", "cam-1")
		if err != nil {
			t.Fatalf("Mark() failed: %v", err)
		}
		if rec.Status != attendance.StatusPresent {
			t.Errorf("rec.Status = %q; want %q", rec.Status, attendance.StatusPresent)
		}
		if rec.StudentID != student.ID || rec.StudentName != "Alice" {
			t.Errorf("wrong student: %q (%s)", rec.StudentName, rec.StudentID)
		}
		if rec.ClassName != "Math 101" {
			t.Errorf("rec.ClassName = %q; want %q", rec.ClassName, "Math 101")
		}
		if rec.Confidence < 99 || rec.Confidence > 100 {
			t.Errorf("rec.Confidence = %v; want ~100 for a self-match", rec.Confidence)
		}
		if rec.Manual {
			t.Error("rec.Manual = true; want false")
		}

		wantPhoto := fmt.Sprintf("%s_%s_20240304_091500.jpg", student.ID, cls.ID)
		if rec.PhotoFilename != wantPhoto {
			t.Errorf("rec.PhotoFilename = %q; want %q", rec.PhotoFilename, wantPhoto)
		}
		if _, err = env.svc.PhotoPath(rec.PhotoFilename); err != nil {
			t.Errorf("PhotoPath() failed: %v", err)
		}
	})

	t.Run("after grace period is late", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", schedule, 15)
		env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)
		setNow(t, time.Date(2024, 3, 4, 9, 15, 1, 0, time.UTC)) // one second past cutoff

		rec, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", "")
		if err != nil {
			t.Fatalf("Mark() failed: %v", err)
		}
		if rec.Status != attendance.StatusLate {
			t.Errorf("rec.Status = %q; want %q", rec.Status, attendance.StatusLate)
		}
	})

	t.Run("no schedule means present", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Club", "Chess", "", classroom.Schedule{}, 15)
		env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)
		setNow(t, time.Date(2024, 3, 4, 23, 59, 0, 0, time.UTC))

		rec, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", "")
		if err != nil {
			t.Fatalf("Mark() failed: %v", err)
		}
		if rec.Status != attendance.StatusPresent {
			t.Errorf("rec.Status = %q; want %q", rec.Status, attendance.StatusPresent)
		}
	})

	t.Run("no face detected", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", schedule, 15)
		env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)

		_, err := env.svc.Mark(context.Background(), testutil.TinyImage(), cls.ID, "kiosk", "")
		if errors.Cause(err) != face.ErrNoFaceDetected {
			t.Errorf("Mark() err = %v; want %v", err, face.ErrNoFaceDetected)
		}
	})

	t.Run("unknown face", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", schedule, 15)
		env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)

		_, err := env.svc.Mark(context.Background(), testutil.FlatImage(), cls.ID, "kiosk", "")
		if errors.Cause(err) != attendance.ErrNoIdentityMatch {
			t.Errorf("Mark() err = %v; want %v", err, attendance.ErrNoIdentityMatch)
		}
	})

	t.Run("unknown class", func(t *testing.T) {
		env := setup(t)

		_, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), "nope", "kiosk", "")
		if errors.Cause(err) != classroom.ErrNotFound {
			t.Errorf("Mark() err = %v; want %v", err, classroom.ErrNotFound)
		}
	})

	t.Run("once per day", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", schedule, 15)
		env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)
		setNow(t, time.Date(2024, 3, 4, 9, 10, 0, 0, time.UTC))

		if _, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", ""); err != nil {
			t.Fatalf("Mark() failed: %v", err)
		}

		// same UTC day, later hour
		setNow(t, time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC))
		if _, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", ""); errors.Cause(err) != attendance.ErrAlreadyMarked {
			t.Errorf("Mark() err = %v; want %v", err, attendance.ErrAlreadyMarked)
		}

		// next day is a fresh slate
		setNow(t, time.Date(2024, 3, 5, 9, 10, 0, 0, time.UTC))
		if _, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", ""); err != nil {
			t.Errorf("Mark() on the next day failed: %v", err)
		}
	})

	t.Run("losing attempt leaves no photo behind", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", schedule, 15)
		student := env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)
		setNow(t, time.Date(2024, 3, 4, 9, 10, 0, 0, time.UTC))

		rec, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", "")
		if err != nil {
			t.Fatalf("Mark() failed: %v", err)
		}

		setNow(t, time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC))
		if _, err = env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", ""); errors.Cause(err) != attendance.ErrAlreadyMarked {
			t.Fatalf("Mark() err = %v; want %v", err, attendance.ErrAlreadyMarked)
		}

		// the winner's photo survives, the losing attempt wrote none
		if _, err = env.svc.PhotoPath(rec.PhotoFilename); err != nil {
			t.Errorf("PhotoPath(%q) failed: %v", rec.PhotoFilename, err)
		}
		orphan := fmt.Sprintf("%s_%s_20240304_230000.jpg", student.ID, cls.ID)
		if _, err = env.svc.PhotoPath(orphan); errors.Cause(err) != attendance.ErrPhotoNotFound {
			t.Errorf("PhotoPath(%q) err = %v; want %v", orphan, err, attendance.ErrPhotoNotFound)
		}
	})

	t.Run("guardian is notified in the background", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", schedule, 15)
		student := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@test.cd", "s3cr3t", user.RoleStudent)
		student.ParentPhone = "+243000000001"
		if _, err := env.usrRepo.UpdateUser(context.Background(), student); err != nil {
			t.Fatalf("UpdateUser() failed: %v", err)
		}
		testutil.EnrollFace(t, env.usrRepo, &student, 1)
		testutil.Enroll(t, env.classRepo, cls.ID, student.ID)
		setNow(t, time.Date(2024, 3, 4, 9, 10, 0, 0, time.UTC))

		if _, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", ""); err != nil {
			t.Fatalf("Mark() failed: %v", err)
		}

		msg := env.waitForSMS(t)
		if msg.ToPhone != "+243000000001" {
			t.Errorf("msg.ToPhone = %q; want %q", msg.ToPhone, "+243000000001")
		}
		want := "Hudhuria: Alice has been marked PRESENT for Math 101 at 09:10."
		if msg.Body != want {
			t.Errorf("msg.Body = %q; want %q", msg.Body, want)
		}
	})
}

func Test_Service_Mark_concurrent(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", classroom.Schedule{}, 15)
	env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)
	setNow(t, time.Date(2024, 3, 4, 9, 10, 0, 0, time.UTC))

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var marked, alreadyMarked int
	for err := range errs {
		switch {
		case err == nil:
			marked++
		case errors.Cause(err) == attendance.ErrAlreadyMarked:
			alreadyMarked++
		default:
			t.Errorf("Mark() err = %v; want nil or %v", err, attendance.ErrAlreadyMarked)
		}
	}
	if marked != 1 || alreadyMarked != attempts-1 {
		t.Errorf("marked = %d, alreadyMarked = %d; want 1 and %d", marked, alreadyMarked, attempts-1)
	}

	recs, err := env.svc.Filter(context.Background(), attendance.QueryFilter{ClassID: cls.ID})
	if err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d; want exactly one record", len(recs))
	}
}

func Test_Service_Mark_tieBreak(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", classroom.Schedule{}, 15)

	// both students share the same template; the roster's ascending ID
	// order decides the winner.
	tmpl, _, err := testutil.NewExtractor().BuildTemplate([]image.Image{testutil.FaceImage(1)})
	if err != nil {
		t.Fatalf("BuildTemplate() failed: %v", err)
	}
	for _, id := range []string{"b-student", "a-student"} {
		usr := user.User{ID: id, Name: id, Email: id + "@test.cd", Role: user.RoleStudent}
		if _, err := env.usrRepo.CreateUser(context.Background(), usr); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
		if err := env.usrRepo.SetFaceTemplate(context.Background(), id, tmpl); err != nil {
			t.Fatalf("SetFaceTemplate() failed: %v", err)
		}
		testutil.Enroll(t, env.classRepo, cls.ID, id)
	}

	res, err := env.svc.Recognize(context.Background(), testutil.FaceImage(1), cls.ID)
	if err != nil {
		t.Fatalf("Recognize() failed: %v", err)
	}
	if !res.Recognized {
		t.Fatal("Recognize() found no match; want one")
	}
	if res.StudentID != "a-student" {
		t.Errorf("res.StudentID = %q; want %q", res.StudentID, "a-student")
	}
}

func Test_Service_MarkManual(t *testing.T) {
	t.Run("absent with notes", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", classroom.Schedule{}, 15)
		student := testutil.CreateUser(t, env.usrRepo, "Bob", "bob@test.cd", "s3cr3t", user.RoleStudent)
		testutil.Enroll(t, env.classRepo, cls.ID, student.ID)
		setNow(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

		rec, err := env.svc.MarkManual(context.Background(), attendance.ManualMark{
			StudentID: student.ID,
			ClassID:   cls.ID,
			Status:    attendance.StatusAbsent,
			Notes:     "sick leave",
		}, "teacher-1")
		if err != nil {
			t.Fatalf("MarkManual() failed: %v", err)
		}
		if rec.Status != attendance.StatusAbsent {
			t.Errorf("rec.Status = %q; want %q", rec.Status, attendance.StatusAbsent)
		}
		if !rec.Manual {
			t.Error("rec.Manual = false; want true")
		}
		if rec.Notes != "sick leave" || rec.MarkedBy != "teacher-1" {
			t.Errorf("rec.Notes = %q, rec.MarkedBy = %q", rec.Notes, rec.MarkedBy)
		}
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		env := setup(t)

		_, err := env.svc.MarkManual(context.Background(), attendance.ManualMark{
			StudentID: "s",
			ClassID:   "c",
			Status:    "skipped",
		}, "teacher-1")
		if err == nil {
			t.Fatal("MarkManual() accepted an invalid status")
		}
	})

	t.Run("once per day applies too", func(t *testing.T) {
		env := setup(t)
		cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", classroom.Schedule{}, 15)
		student := testutil.CreateUser(t, env.usrRepo, "Bob", "bob@test.cd", "s3cr3t", user.RoleStudent)
		testutil.Enroll(t, env.classRepo, cls.ID, student.ID)
		setNow(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

		mm := attendance.ManualMark{StudentID: student.ID, ClassID: cls.ID, Status: attendance.StatusPresent}
		if _, err := env.svc.MarkManual(context.Background(), mm, "teacher-1"); err != nil {
			t.Fatalf("MarkManual() failed: %v", err)
		}
		if _, err := env.svc.MarkManual(context.Background(), mm, "teacher-1"); errors.Cause(err) != attendance.ErrAlreadyMarked {
			t.Errorf("MarkManual() err = %v; want %v", err, attendance.ErrAlreadyMarked)
		}
	})
}

func Test_Service_Recognize(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", classroom.Schedule{}, 15)
	student := env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)

	res, err := env.svc.Recognize(context.Background(), testutil.FaceImage(1), cls.ID)
	if err != nil {
		t.Fatalf("Recognize() failed: %v", err)
	}
	if !res.Recognized || res.StudentID != student.ID {
		t.Errorf("res = %+v; want a match for %s", res, student.ID)
	}
	if res.Confidence < 99 || res.Confidence > 100 {
		t.Errorf("res.Confidence = %v; want ~100", res.Confidence)
	}

	// no match is not an error
	res, err = env.svc.Recognize(context.Background(), testutil.FlatImage(), cls.ID)
	if err != nil {
		t.Fatalf("Recognize() failed: %v", err)
	}
	if res.Recognized || res.StudentID != "" {
		t.Errorf("res = %+v; want no match", res)
	}
}

func Test_Service_TodayForClass(t *testing.T) {
	env := setup(t)
	cls := testutil.CreateClass(t, env.classRepo, "Math 101", "Math", "", classroom.Schedule{}, 15)
	alice := env.enrolledStudent(t, "Alice", "alice@test.cd", 1, cls.ID)
	bob := testutil.CreateUser(t, env.usrRepo, "Bob", "bob@test.cd", "s3cr3t", user.RoleStudent)
	testutil.Enroll(t, env.classRepo, cls.ID, bob.ID)
	setNow(t, time.Date(2024, 3, 4, 9, 10, 0, 0, time.UTC))

	if _, err := env.svc.Mark(context.Background(), testutil.FaceImage(1), cls.ID, "kiosk", ""); err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}

	statuses, err := env.svc.TodayForClass(context.Background(), cls.ID)
	if err != nil {
		t.Fatalf("TodayForClass() failed: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("len(statuses) = %d; want 2", len(statuses))
	}

	byID := make(map[string]attendance.TodayStatus, len(statuses))
	for _, st := range statuses {
		byID[st.StudentID] = st
	}
	if st := byID[alice.ID]; st.Status != attendance.StatusPresent || st.Timestamp == nil || !st.FaceRegistered {
		t.Errorf("alice status = %+v; want a present record", st)
	}
	if st := byID[bob.ID]; st.Status != attendance.StatusNotMarked || st.Timestamp != nil || st.FaceRegistered {
		t.Errorf("bob status = %+v; want not_marked", st)
	}
}
