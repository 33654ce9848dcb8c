package constants

// Fixed navigation targets used by the access gate.
const (
	NotAuthorizedRoute = "/not-authorized"
	LoginRoute         = "/login"
)

// Dashboard page routes.
const (
	MultiSchoolDashboard = "/dashboard"
	SchoolManagement     = "/schools"
	Sessions             = "/academic-settings/sessions"
	Classes              = "/class-management"
	SchoolDashboard      = "/school-dashboard"
	AcademicsOverview    = "/academics"
	ClassSections        = "/academics/class-sections"
	Subjects             = "/academics/subjects"
	Timetable            = "/academics/timetable"
	AttendanceStudent    = "/academics/attendance/students"
	AttendanceStaff      = "/academics/attendance/staff"
	StudentAdmission     = "/student-management/admission"
	StudentProfiles      = "/student-management/profiles"
	StudentPromotion     = "/student-management/promotion"
	StudentTransfer      = "/student-management/transfer"
	StaffRegistration    = "/staff-management/register"
	StaffList            = "/staff-management"
	ExamsManage          = "/examinations"
	ExamsQuestionBank    = "/examinations/question-bank"
	ExamsResults         = "/examinations/results"
	ExamsStudentReport   = "/examinations/student-reports"
	ExamsGlobalSettings  = "/examinations/global-settings"
	FinanceDashboard     = "/finance"
	FinanceFeeManagement = "/finance/fee-management"
	FinanceInvoices      = "/finance/invoices"
	FinancePayments      = "/finance/payments"
	FinanceExpenses      = "/finance/expenses"
	NotificationSend     = "/notifications/send"
	NotificationView     = "/notifications/view"
	Profile              = "/profile"
	Settings             = "/settings"
)

// Student and parent self-service routes.
const (
	StudentProfile       = "/student/profile"
	StudentTimetable     = "/student/academics/timetable"
	StudentSubjects      = "/student/academics/subjects"
	StudentAttendance    = "/student/academics/attendance/student"
	StudentExams         = "/student/examinations"
	StudentExamTimetable = "/student/examinations/timetable"
	StudentExamResults   = "/student/examinations/results"
	StudentFinance       = "/student/finance"
	StudentInvoices      = "/student/finance/invoices"
	StudentPayments      = "/student/finance/payments"
	StudentMakePayment   = "/student/finance/make-payment"
	StudentNotifications = "/student/notifications"
)
