package service

import "strings"

// Roles understood by the quiz subsystem.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Principal is the authenticated caller of a service operation.
type Principal struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the principal bypasses course ownership.
func (p Principal) IsAdmin() bool {
	return strings.EqualFold(p.Role, RoleAdmin)
}

// IsTeacher reports whether the principal may author and grade quizzes.
func (p Principal) IsTeacher() bool {
	return strings.EqualFold(p.Role, RoleTeacher) || p.IsAdmin()
}

// IsStudent reports whether the principal takes quizzes.
func (p Principal) IsStudent() bool {
	return strings.EqualFold(p.Role, RoleStudent)
}
