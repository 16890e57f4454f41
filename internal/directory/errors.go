package directory

import "errors"

var (
	// ErrInvalidCredentials is shown to end users and must not reveal
	// whether the username exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUsernameRequired = errors.New("username and user ID are required")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUnknownRole      = errors.New("role must be teacher or student")

	ErrBadDashboardID   = errors.New("dashboard ID must be exactly 12 digits")
	ErrDashboardIDTaken = errors.New("this dashboard ID is already in use")
	ErrSameDashboardID  = errors.New("no change detected")

	ErrBadTeacherID        = errors.New("teacher dashboard ID must be exactly 12 digits")
	ErrTeacherLinkRequired = errors.New("you must connect to a teacher to register")
	// ErrTeacherUnknown is the non-blocking registration warning: callers
	// may retry with ConfirmUnknownTeacher set to proceed anyway.
	ErrTeacherUnknown = errors.New("no teacher found with this dashboard ID")

	ErrTeacherNotFound = errors.New("no teacher found with this dashboard ID, please verify the number")
	ErrStudentNotFound = errors.New("student not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrUnlinkConfirmRequired guards the dashboard ID cascade: changing
	// the ID unlinks every student pointing at the old one.
	ErrUnlinkConfirmRequired = errors.New("changing your dashboard ID will unlink your students, confirmation required")
)
