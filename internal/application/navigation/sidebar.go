package navigation

import (
	"edustack-web/internal/application/permissions"
	c "edustack-web/internal/pkg/constants"
)

func roles(rs ...c.Role) Access { return Access{Roles: rs} }

var (
	staffOnly   = Access{Roles: []c.Role{}, Staff: true}
	everyoneIn  = Access{Roles: []c.Role{}, AllAuthenticated: true}
	adminOnly   = roles(c.Admin)
	adminTeach  = roles(c.Admin, c.Teacher)
	adminFin    = roles(c.Admin, c.Finance)
	superOnly   = roles(c.SuperAdmin)
	superAdmins = roles(c.SuperAdmin, c.Admin)
	selfService = roles(c.Student, c.Parent)
)

// Sidebar is the dashboard menu and page table.
var Sidebar = []Category{
	{
		Title:  "Dashboard",
		Access: superAdmins,
		Links: []Link{
			{Href: c.MultiSchoolDashboard, Label: "System Dashboard", Access: superOnly},
			{Href: c.SchoolDashboard, Label: "School Dashboard", Access: adminOnly},
		},
	},
	{
		Title:  "School Management",
		Access: superOnly,
		Links: []Link{
			{Href: c.SchoolManagement, Label: "Schools", Access: superOnly},
			{Href: c.Sessions, Label: "Sessions & Terms", Access: superOnly},
			{Href: c.Classes, Label: "Classes", Access: superOnly},
		},
	},
	{
		Title:  "Academics",
		Access: Access{Roles: []c.Role{c.Admin}, Staff: true},
		Links: []Link{
			{Href: c.AcademicsOverview, Label: "Overview", Access: adminOnly},
			{Href: c.ClassSections, Label: "Class Sections", Access: staffOnly},
			{Href: c.Subjects, Label: "Subjects", Access: staffOnly},
			{Href: c.Timetable, Label: "Timetable", Access: staffOnly},
			{Href: c.AttendanceStudent, Label: "Student Attendance", Access: roles(c.Admin, c.SuperAdmin, c.Teacher)},
			{Href: c.AttendanceStaff, Label: "Staff Attendance", Access: roles(c.Admin, c.SuperAdmin, c.Teacher)},
		},
	},
	{
		Title:  "Student Management",
		Access: Access{Roles: []c.Role{c.Admin, c.Teacher}, Staff: true},
		Links: []Link{
			{Href: c.StudentAdmission, Label: "Admission", Access: adminOnly},
			{Href: c.StudentProfiles, Label: "Student Profiles", Access: adminTeach},
			{Href: c.StudentPromotion, Label: "Promote Students", Access: adminTeach},
			{Href: c.StudentTransfer, Label: "Transfer Students", Access: adminOnly},
		},
	},
	{
		Title:  "Staff Management",
		Access: adminOnly,
		Links: []Link{
			{Href: c.StaffRegistration, Label: "Register Staff", Access: adminOnly},
			{Href: c.StaffList, Label: "Staff List", Access: adminOnly},
		},
	},
	{
		Title:  "Examinations",
		Access: Access{Roles: []c.Role{c.Admin, c.Teacher}, Staff: true},
		Links: []Link{
			{Href: c.ExamsManage, Label: "Manage Exams", Access: adminTeach},
			{Href: c.ExamsQuestionBank, Label: "Question Bank", Access: adminTeach},
			{Href: c.ExamsResults, Label: "Results Management", Access: adminTeach},
			{Href: c.ExamsStudentReport, Label: "Student Reports", Access: adminTeach},
			{Href: c.ExamsGlobalSettings, Label: "Global Exam Settings", Access: adminOnly},
		},
	},
	{
		Title:  "Finance Management",
		Access: adminFin,
		Links: []Link{
			{Href: c.FinanceDashboard, Label: "Financial Dashboard", Access: adminFin},
			{Href: c.FinanceFeeManagement, Label: "Fee Management", Access: adminFin},
			{Href: c.FinanceInvoices, Label: "Invoices & Receipts", Access: adminFin},
			{Href: c.FinancePayments, Label: "Payment Processing", Access: adminFin},
			{Href: c.FinanceExpenses, Label: "Expense Management", Access: adminFin},
		},
	},
	{
		Title:  "Notification & Mail",
		Access: superAdmins,
		Links: []Link{
			{Href: c.NotificationSend, Label: "Send Bulk Messages", Access: superAdmins},
			{Href: c.NotificationView, Label: "View Notifications", Access: superAdmins},
		},
	},
	{
		Title:  "General",
		Access: everyoneIn,
		Links: []Link{
			{Href: c.Profile, Label: "Profile", Access: everyoneIn},
			{Href: c.Settings, Label: "Settings", Access: everyoneIn},
		},
	},
}

// StudentSidebar is the self-service menu students and parents get instead
// of Sidebar.
var StudentSidebar = []Category{
	{
		Title:  "Dashboard",
		Access: selfService,
		Links: []Link{
			{Href: c.StudentProfile, Label: "My Profile", Access: selfService},
		},
	},
	{
		Title:  "Academics",
		Access: selfService,
		Links: []Link{
			{Href: c.StudentTimetable, Label: "Timetable", Access: selfService},
			{Href: c.StudentSubjects, Label: "Subjects", Access: selfService},
			{Href: c.StudentAttendance, Label: "Attendance", Access: selfService},
		},
	},
	{
		Title:  "Examinations",
		Access: selfService,
		Links: []Link{
			{Href: c.StudentExamTimetable, Label: "Exam Schedule", Access: selfService},
			{Href: c.StudentExams, Label: "Computer-Based Tests", Access: selfService},
			{Href: c.StudentExamResults, Label: "Results", Access: selfService},
		},
	},
	{
		Title:  "Finance",
		Access: selfService,
		Links: []Link{
			{Href: c.StudentFinance, Label: "Overview", Access: selfService},
			{Href: c.StudentInvoices, Label: "Invoices", Access: selfService},
			{Href: c.StudentPayments, Label: "Payment History", Access: selfService},
			{Href: c.StudentMakePayment, Label: "Make a Payment", Access: selfService},
		},
	},
	{
		Title:  "Notifications",
		Access: selfService,
		Links: []Link{
			{Href: c.StudentNotifications, Label: "View All Notifications", Access: selfService},
		},
	},
}

// Menus pairs the staff dashboard with the self-service area.
type Menus struct {
	Staff       []Category
	SelfService []Category
}

// DefaultMenus serves Sidebar to staff and StudentSidebar to students and
// parents.
var DefaultMenus = Menus{Staff: Sidebar, SelfService: StudentSidebar}

// For picks the table matching the current role. Super admins always get
// the staff dashboard.
func (m Menus) For(ev *permissions.Evaluator) []Category {
	if ev.IsSuperAdmin() {
		return m.Staff
	}
	if role, ok := ev.CurrentRole(); ok && (role == c.Student || role == c.Parent) {
		return m.SelfService
	}
	return m.Staff
}

// Menu is the filtered menu of the table For picks.
func (m Menus) Menu(ev *permissions.Evaluator) []Category {
	return Menu(ev, m.For(ev))
}

// Pages lists every gated page of both tables.
func (m Menus) Pages() []Link {
	all := make([]Category, 0, len(m.Staff)+len(m.SelfService))
	all = append(all, m.Staff...)
	all = append(all, m.SelfService...)
	return Pages(all)
}
