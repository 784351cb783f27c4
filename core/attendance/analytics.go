package attendance

import (
	"context"
	"math"

	"github.com/trezcool/hudhuria/core/classroom"
	"github.com/trezcool/hudhuria/core/user"
)

type (
	DayCount struct {
		Date  string `json:"date"`
		Day   string `json:"day"`
		Count int    `json:"count"`
	}

	TodayBreakdown struct {
		Present int `json:"present"`
		Late    int `json:"late"`
		Absent  int `json:"absent"`
		Total   int `json:"total"`
	}

	Overview struct {
		TotalStudents   int            `json:"total_students"`
		TotalTeachers   int            `json:"total_teachers"`
		TotalClasses    int            `json:"total_classes"`
		Today           TodayBreakdown `json:"today"`
		WeeklyTrend     []DayCount     `json:"weekly_trend"`
		AttendanceRate  float64        `json:"attendance_rate"`
		FacesRegistered int            `json:"faces_registered"`
	}

	StudentBreakdown struct {
		Name    string `json:"name"`
		Present int    `json:"present"`
		Late    int    `json:"late"`
		Absent  int    `json:"absent"`
	}

	StatusSummary struct {
		Present int `json:"present"`
		Late    int `json:"late"`
		Absent  int `json:"absent"`
	}

	ClassAnalytics struct {
		ClassID          string             `json:"class_id"`
		ClassName        string             `json:"class_name"`
		TotalRecords     int                `json:"total_records"`
		Summary          StatusSummary      `json:"summary"`
		AttendanceRate   float64            `json:"attendance_rate"`
		StudentBreakdown []StudentBreakdown `json:"student_breakdown"`
	}

	StudentDashboard struct {
		EnrolledClasses int     `json:"enrolled_classes"`
		AttendanceRate  float64 `json:"attendance_rate"`
		TotalPresent    int     `json:"total_present"`
		TotalLate       int     `json:"total_late"`
		TotalAbsent     int     `json:"total_absent"`
	}

	TeacherDashboard struct {
		TotalClasses    int `json:"total_classes"`
		TotalStudents   int `json:"total_students"`
		TodayAttendance int `json:"today_attendance"`
	}
)

// Overview aggregates school-wide attendance stats for admin dashboards.
func (svc *Service) Overview(ctx context.Context) (Overview, error) {
	today := dayStart(NowFunc())
	monthAgo := today.AddDate(0, 0, -30)

	students, err := svc.usrGtr.Filter(ctx, user.QueryFilter{Role: user.RoleStudent})
	if err != nil {
		return Overview{}, err
	}
	teachers, err := svc.usrGtr.Filter(ctx, user.QueryFilter{Role: user.RoleTeacher})
	if err != nil {
		return Overview{}, err
	}
	classes, err := svc.classSvc.Filter(ctx, classroom.QueryFilter{})
	if err != nil {
		return Overview{}, err
	}

	todayRecs, err := svc.repo.FilterRecords(ctx, QueryFilter{DateFrom: &today})
	if err != nil {
		return Overview{}, err
	}
	var present, late int
	for _, rec := range todayRecs {
		switch rec.Status {
		case StatusPresent:
			present++
		case StatusLate:
			late++
		}
	}

	trend := make([]DayCount, 0, 7)
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, -(6 - i))
		next := day.AddDate(0, 0, 1)
		count, err := svc.repo.CountRecords(ctx, QueryFilter{DateFrom: &day, DateTo: &next})
		if err != nil {
			return Overview{}, err
		}
		trend = append(trend, DayCount{
			Date:  day.Format("2006-01-02"),
			Day:   day.Format("Mon"),
			Count: count,
		})
	}

	monthRecs, err := svc.repo.FilterRecords(ctx, QueryFilter{DateFrom: &monthAgo})
	if err != nil {
		return Overview{}, err
	}
	var attended int
	for _, rec := range monthRecs {
		if rec.Status == StatusPresent || rec.Status == StatusLate {
			attended++
		}
	}

	var facesRegistered int
	for _, usr := range students {
		if usr.FaceEnrolled {
			facesRegistered++
		}
	}

	return Overview{
		TotalStudents: len(students),
		TotalTeachers: len(teachers),
		TotalClasses:  len(classes),
		Today: TodayBreakdown{
			Present: present,
			Late:    late,
			Absent:  len(students) - present - late,
			Total:   len(todayRecs),
		},
		WeeklyTrend:     trend,
		AttendanceRate:  rate(attended, len(monthRecs)),
		FacesRegistered: facesRegistered,
	}, nil
}

// ClassAnalytics summarizes the last 30 days of a class.
func (svc *Service) ClassAnalytics(ctx context.Context, classID string) (ClassAnalytics, error) {
	cls, err := svc.classSvc.GetByID(ctx, classID)
	if err != nil {
		return ClassAnalytics{}, err
	}

	monthAgo := NowFunc().UTC().AddDate(0, 0, -30)
	recs, err := svc.repo.FilterRecords(ctx, QueryFilter{ClassID: classID, DateFrom: &monthAgo})
	if err != nil {
		return ClassAnalytics{}, err
	}

	var summary StatusSummary
	perStudent := make(map[string]*StudentBreakdown)
	order := make([]string, 0)
	for _, rec := range recs {
		sb, ok := perStudent[rec.StudentID]
		if !ok {
			sb = &StudentBreakdown{Name: rec.StudentName}
			perStudent[rec.StudentID] = sb
			order = append(order, rec.StudentID)
		}
		switch rec.Status {
		case StatusPresent:
			summary.Present++
			sb.Present++
		case StatusLate:
			summary.Late++
			sb.Late++
		case StatusAbsent:
			summary.Absent++
			sb.Absent++
		}
	}

	breakdown := make([]StudentBreakdown, 0, len(order))
	for _, sid := range order {
		breakdown = append(breakdown, *perStudent[sid])
	}

	return ClassAnalytics{
		ClassID:          classID,
		ClassName:        cls.Name,
		TotalRecords:     len(recs),
		Summary:          summary,
		AttendanceRate:   rate(summary.Present+summary.Late, len(recs)),
		StudentBreakdown: breakdown,
	}, nil
}

// StudentDashboard summarizes a student's own last 30 days.
func (svc *Service) StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error) {
	classes, err := svc.classSvc.Filter(ctx, classroom.QueryFilter{StudentID: studentID})
	if err != nil {
		return StudentDashboard{}, err
	}

	monthAgo := dayStart(NowFunc()).AddDate(0, 0, -30)
	recs, err := svc.repo.FilterRecords(ctx, QueryFilter{StudentID: studentID, DateFrom: &monthAgo})
	if err != nil {
		return StudentDashboard{}, err
	}

	var present, late, absent int
	for _, rec := range recs {
		switch rec.Status {
		case StatusPresent:
			present++
		case StatusLate:
			late++
		case StatusAbsent:
			absent++
		}
	}
	return StudentDashboard{
		EnrolledClasses: len(classes),
		AttendanceRate:  rate(present+late, max(len(recs), 1)),
		TotalPresent:    present + late,
		TotalLate:       late,
		TotalAbsent:     absent,
	}, nil
}

// TeacherDashboard summarizes the classes a teacher owns.
func (svc *Service) TeacherDashboard(ctx context.Context, teacherID string) (TeacherDashboard, error) {
	classes, err := svc.classSvc.Filter(ctx, classroom.QueryFilter{TeacherID: teacherID})
	if err != nil {
		return TeacherDashboard{}, err
	}

	today := dayStart(NowFunc())
	var totalStudents, todayCount int
	for _, cls := range classes {
		enrs, err := svc.classSvc.Enrollments(ctx, cls.ID)
		if err != nil {
			return TeacherDashboard{}, err
		}
		totalStudents += len(enrs)

		count, err := svc.repo.CountRecords(ctx, QueryFilter{ClassID: cls.ID, DateFrom: &today})
		if err != nil {
			return TeacherDashboard{}, err
		}
		todayCount += count
	}
	return TeacherDashboard{
		TotalClasses:    len(classes),
		TotalStudents:   totalStudents,
		TodayAttendance: todayCount,
	}, nil
}

func rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
