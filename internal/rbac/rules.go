package rbac

// Capabilities checked at the entry of every role-gated operation.
const (
	CourseList       = "course:list"
	CourseListOwn    = "course:list_own"
	CourseCreate     = "course:create"
	QuizCreate       = "quiz:create"
	QuizList         = "quiz:list"
	QuestionAdd      = "question:add"
	EnrollmentCreate = "enrollment:create"
	EnrollmentList   = "enrollment:list"
	QuizTake         = "quiz:take"
	QuizResult       = "quiz:result"
)

// RolePermissions is the default policy. Teacher and student capabilities
// are disjoint apart from browsing the catalog.
var RolePermissions = map[Role][]string{
	RoleStudent: {
		CourseList,
		EnrollmentCreate,
		EnrollmentList,
		QuizTake,
		QuizResult,
	},
	RoleTeacher: {
		CourseList,
		CourseListOwn,
		CourseCreate,
		QuizCreate,
		QuizList,
		QuestionAdd,
	},
}
