package attendance

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/face"
	"github.com/trezcool/hudhuria/core/user"
)

// NowFunc returns the current time; mocked in tests.
var NowFunc = time.Now

var (
	// errors
	ErrNoIdentityMatch = errors.New("no matching student found")
	ErrAlreadyMarked   = errors.New("attendance already marked for today")
	ErrPhotoNotFound   = errors.New("photo not found")
)

type (
	Repository interface {
		// CreateRecord returns ErrAlreadyMarked when the student already
		// holds a record for this class on the same UTC day.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		// FilterRecords applies AND operation on available QueryFilter
		// fields; results are ordered by most recent first.
		FilterRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
		CountRecords(ctx context.Context, filter QueryFilter) (int, error)
		HasRecordForDay(ctx context.Context, studentID, classID string, day time.Time) (bool, error)
	}

	// PhotoStore persists and serves attendance capture photos; implemented
	// by storage/fotostore.
	PhotoStore interface {
		Save(filename string, img image.Image) error
		Path(filename string) (string, error)
	}

	// UserDirectory is the slice of user.Service this package needs.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Filter(ctx context.Context, filter user.QueryFilter) ([]user.User, error)
	}

	Service struct {
		repo      Repository
		classSvc  *classroom.Service
		usrGtr    UserDirectory
		extractor *face.Extractor
		photos    PhotoStore
		smsSvc    core.SMSService
		conf      *core.Config
		logger    core.Logger
		validate  *validator.Validate
	}
)

func NewService(
	repo Repository,
	classSvc *classroom.Service,
	usrGtr UserDirectory,
	extractor *face.Extractor,
	photos PhotoStore,
	smsSvc core.SMSService,
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:      repo,
		classSvc:  classSvc,
		usrGtr:    usrGtr,
		extractor: extractor,
		photos:    photos,
		smsSvc:    smsSvc,
		conf:      conf,
		logger:    logger,
		validate:  validate,
	}
}

// Mark identifies the student in img among the class roster and records
// their attendance for the current UTC day. markedBy and deviceID are
// recorded as-is. The capture photo is persisted and the student's guardian
// notified only once the record commits; failures on either never surface
// here.
func (svc *Service) Mark(ctx context.Context, img image.Image, classID, markedBy, deviceID string) (Record, error) {
	probe, ok := svc.extractor.Extract(img)
	if !ok {
		return Record{}, face.ErrNoFaceDetected
	}

	cls, err := svc.classSvc.GetByID(ctx, classID)
	if err != nil {
		return Record{}, err
	}

	match, students, err := svc.matchRoster(ctx, probe, classID, svc.conf.MarkingThreshold)
	if err != nil {
		return Record{}, err
	}
	if !match.Matched {
		return Record{}, ErrNoIdentityMatch
	}
	student := students[match.ID]

	now := NowFunc().UTC()
	if marked, err := svc.repo.HasRecordForDay(ctx, student.ID, classID, dayStart(now)); err != nil {
		return Record{}, err
	} else if marked {
		return Record{}, ErrAlreadyMarked
	}

	status := scheduleStatus(cls, now)

	photoFilename := fmt.Sprintf("%s_%s_%s.jpg", student.ID, classID, now.Format("20060102_150405"))
	rec := Record{
		ID:            uuid.New().String(),
		StudentID:     student.ID,
		StudentName:   student.Name,
		ClassID:       classID,
		ClassName:     cls.Name,
		Status:        status,
		Timestamp:     now,
		PhotoFilename: photoFilename,
		Confidence:    face.Confidence(match.Score),
		MarkedBy:      markedBy,
		DeviceID:      deviceID,
	}
	if rec, err = svc.repo.CreateRecord(ctx, rec); err != nil {
		return Record{}, err
	}

	// the photo is written only after the record commits; an attempt that
	// loses the uniqueness race leaves nothing in the photo store
	if err = svc.photos.Save(photoFilename, img); err != nil {
		svc.logger.Error(errors.Wrap(err, "saving attendance photo").Error())
	}

	go svc.notifyGuardian(student.ID, status, cls.Name)
	return rec, nil
}

// MarkManual records attendance without face recognition. This is the only
// path that may set the absent status.
func (svc *Service) MarkManual(ctx context.Context, mm ManualMark, markedBy string) (Record, error) {
	if err := mm.Validate(svc); err != nil {
		return Record{}, err
	}

	student, err := svc.usrGtr.GetByID(ctx, mm.StudentID)
	if err != nil {
		return Record{}, err
	}
	cls, err := svc.classSvc.GetByID(ctx, mm.ClassID)
	if err != nil {
		return Record{}, err
	}

	now := NowFunc().UTC()
	if marked, err := svc.repo.HasRecordForDay(ctx, student.ID, cls.ID, dayStart(now)); err != nil {
		return Record{}, err
	} else if marked {
		return Record{}, ErrAlreadyMarked
	}

	rec := Record{
		ID:          uuid.New().String(),
		StudentID:   student.ID,
		StudentName: student.Name,
		ClassID:     cls.ID,
		ClassName:   cls.Name,
		Status:      mm.Status,
		Timestamp:   now,
		MarkedBy:    markedBy,
		Notes:       mm.Notes,
		Manual:      true,
	}
	if rec, err = svc.repo.CreateRecord(ctx, rec); err != nil {
		return Record{}, err
	}

	go svc.notifyGuardian(student.ID, mm.Status, cls.Name)
	return rec, nil
}

// Recognize matches img against the class roster without recording
// anything. It uses a stricter threshold than Mark.
func (svc *Service) Recognize(ctx context.Context, img image.Image, classID string) (RecognitionResult, error) {
	probe, ok := svc.extractor.Extract(img)
	if !ok {
		return RecognitionResult{}, face.ErrNoFaceDetected
	}

	match, students, err := svc.matchRoster(ctx, probe, classID, svc.conf.RecognitionThreshold)
	if err != nil {
		return RecognitionResult{}, err
	}
	if !match.Matched {
		return RecognitionResult{}, nil
	}
	return RecognitionResult{
		Recognized:  true,
		StudentID:   match.ID,
		StudentName: students[match.ID].Name,
		Confidence:  face.Confidence(match.Score),
	}, nil
}

// HasFace reports whether a face can be located in img.
func (svc *Service) HasFace(img image.Image) bool {
	return svc.extractor.HasFace(img)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Record, error) {
	return svc.repo.FilterRecords(ctx, filter)
}

// TodayForClass returns today's status for every enrolled student,
// synthesizing StatusNotMarked for students without a record.
func (svc *Service) TodayForClass(ctx context.Context, classID string) ([]TodayStatus, error) {
	students, err := svc.classSvc.Students(ctx, classID)
	if err != nil {
		return nil, err
	}

	today := dayStart(NowFunc())
	recs, err := svc.repo.FilterRecords(ctx, QueryFilter{ClassID: classID, DateFrom: &today})
	if err != nil {
		return nil, err
	}
	recByStudent := make(map[string]Record, len(recs))
	for _, rec := range recs {
		recByStudent[rec.StudentID] = rec
	}

	statuses := make([]TodayStatus, 0, len(students))
	for _, student := range students {
		st := TodayStatus{
			StudentID:      student.ID,
			StudentName:    student.Name,
			FaceRegistered: student.FaceEnrolled,
			Status:         StatusNotMarked,
		}
		if rec, ok := recByStudent[student.ID]; ok {
			ts := rec.Timestamp
			st.Status = rec.Status
			st.Timestamp = &ts
			st.PhotoFilename = rec.PhotoFilename
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// PhotoPath resolves a stored attendance photo filename to a servable path.
func (svc *Service) PhotoPath(filename string) (string, error) {
	return svc.photos.Path(filename)
}

// matchRoster runs the probe descriptor against the class' face-enrolled
// students. Candidates are evaluated in roster order (ascending student ID)
// so equal scores resolve deterministically.
func (svc *Service) matchRoster(
	ctx context.Context, probe face.Descriptor, classID string, threshold float64,
) (face.MatchResult, map[string]user.User, error) {
	students, err := svc.classSvc.EnrolledFaces(ctx, classID)
	if err != nil {
		return face.MatchResult{}, nil, err
	}

	candidates := make([]face.Candidate, 0, len(students))
	byID := make(map[string]user.User, len(students))
	for _, student := range students {
		if len(student.FaceTemplate) == 0 {
			continue
		}
		candidates = append(candidates, face.Candidate{ID: student.ID, Template: student.FaceTemplate})
		byID[student.ID] = student
	}
	return face.Match(probe, candidates, threshold), byID, nil
}

// scheduleStatus decides present vs late from the class schedule. A missing
// or malformed schedule yields present; late requires the time of day to be
// strictly after start + grace period.
func scheduleStatus(cls classroom.Class, now time.Time) string {
	start, err := time.Parse("15:04", cls.Schedule.Start)
	if err != nil {
		return StatusPresent
	}

	cutoff := time.Duration(start.Hour())*time.Hour +
		time.Duration(start.Minute())*time.Minute +
		time.Duration(cls.GracePeriodMinutes)*time.Minute
	cutoff %= 24 * time.Hour

	nowClock := time.Duration(now.Hour())*time.Hour +
		time.Duration(now.Minute())*time.Minute +
		time.Duration(now.Second())*time.Second +
		time.Duration(now.Nanosecond())

	if nowClock > cutoff {
		return StatusLate
	}
	return StatusPresent
}

func (svc *Service) notifyGuardian(studentID, status, className string) {
	defer func() {
		if rec := recover(); rec != nil {
			svc.logger.Error(fmt.Sprintf("guardian notification panicked: %v", rec))
		}
	}()

	student, err := svc.usrGtr.GetByID(context.Background(), studentID)
	if err != nil || student.ParentPhone == "" {
		return
	}

	name := student.Name
	if name == "" {
		name = "Your child"
	}
	var body string
	switch status {
	case StatusPresent:
		body = fmt.Sprintf("%s: %s has been marked PRESENT for %s at %s.",
			svc.conf.AppName, name, className, NowFunc().UTC().Format("15:04"))
	case StatusLate:
		body = fmt.Sprintf("%s: %s arrived LATE to %s at %s.",
			svc.conf.AppName, name, className, NowFunc().UTC().Format("15:04"))
	default:
		body = fmt.Sprintf("%s: %s is marked ABSENT for %s.", svc.conf.AppName, name, className)
	}

	svc.smsSvc.Send(&core.SMSMessage{ToPhone: student.ParentPhone, Body: body})
}
