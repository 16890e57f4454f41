package directory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"studentsphere/internal/util"
	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

var dashboardIDPattern = regexp.MustCompile(`^\d{12}$`)

// Service owns the user directory: accounts, login checks, and the
// teacher-student links every other component partitions by.
type Service struct {
	kv  store.KV
	now func() time.Time
}

// New constructs the directory service.
func New(kv store.KV) *Service {
	return &Service{kv: kv, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterInput carries a registration request. Credential is the user ID
// the account will log in with. DashboardID applies to teachers, ConnectID
// to students; ConfirmUnknownTeacher lets a student register against a
// dashboard ID no teacher currently owns.
type RegisterInput struct {
	Username              string
	Credential            string
	Role                  domain.UserRole
	DashboardID           string
	ConnectID             string
	ConfirmUnknownTeacher bool
}

// Register appends a new account to the directory. It does not log the
// caller in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	credential := strings.TrimSpace(in.Credential)
	if username == "" || credential == "" {
		return domain.User{}, ErrUsernameRequired
	}

	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Username == username {
			return domain.User{}, ErrUsernameTaken
		}
	}

	user := domain.User{
		ID:        util.NewID(),
		Username:  username,
		Role:      in.Role,
		CreatedAt: s.now(),
	}

	switch in.Role {
	case domain.RoleTeacher:
		dashboardID := strings.TrimSpace(in.DashboardID)
		if !dashboardIDPattern.MatchString(dashboardID) {
			return domain.User{}, ErrBadDashboardID
		}
		for _, u := range users {
			if u.DashboardID == dashboardID {
				return domain.User{}, ErrDashboardIDTaken
			}
		}
		user.DashboardID = dashboardID
	case domain.RoleStudent:
		connectID := strings.TrimSpace(in.ConnectID)
		if connectID == "" {
			return domain.User{}, ErrTeacherLinkRequired
		}
		if !dashboardIDPattern.MatchString(connectID) {
			return domain.User{}, ErrBadTeacherID
		}
		if !teacherExists(users, connectID) && !in.ConfirmUnknownTeacher {
			return domain.User{}, ErrTeacherUnknown
		}
		user.LinkedTeacherID = connectID
	default:
		return domain.User{}, ErrUnknownRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash credential: %w", err)
	}
	user.CredentialHash = string(hash)

	users = append(users, user)
	if err := store.PutList(ctx, s.kv, store.KeyUsers, users); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login checks username and user ID. Both must match exactly.
func (s *Service) Login(ctx context.Context, username, credential string) (domain.User, error) {
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Username != strings.TrimSpace(username) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.CredentialHash), []byte(credential)) == nil {
			return u, nil
		}
		break
	}
	return domain.User{}, ErrInvalidCredentials
}

// Get returns the account for username.
func (s *Service) Get(ctx context.Context, username string) (domain.User, bool, error) {
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return domain.User{}, false, err
	}
	for _, u := range users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// TeacherByDashboardID returns the teacher owning a dashboard ID.
func (s *Service) TeacherByDashboardID(ctx context.Context, dashboardID string) (domain.User, bool, error) {
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return domain.User{}, false, err
	}
	for _, u := range users {
		if u.Role == domain.RoleTeacher && u.DashboardID == dashboardID {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// Relink points a student at a new teacher. The teacher must exist.
// Returns the teacher for confirmation messages.
func (s *Service) Relink(ctx context.Context, studentUsername, newTeacherID string) (domain.User, error) {
	newTeacherID = strings.TrimSpace(newTeacherID)
	if !dashboardIDPattern.MatchString(newTeacherID) {
		return domain.User{}, ErrBadDashboardID
	}
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return domain.User{}, err
	}
	var teacher *domain.User
	for i := range users {
		if users[i].Role == domain.RoleTeacher && users[i].DashboardID == newTeacherID {
			teacher = &users[i]
			break
		}
	}
	if teacher == nil {
		return domain.User{}, ErrTeacherNotFound
	}
	for i := range users {
		if users[i].Username == studentUsername && users[i].Role == domain.RoleStudent {
			users[i].LinkedTeacherID = newTeacherID
			if err := store.PutList(ctx, s.kv, store.KeyUsers, users); err != nil {
				return domain.User{}, err
			}
			return *teacher, nil
		}
	}
	return domain.User{}, ErrStudentNotFound
}

// CountLinkedStudents reports how many students point at dashboardID.
// Clients show this before confirming a dashboard ID change.
func (s *Service) CountLinkedStudents(ctx context.Context, dashboardID string) (int, error) {
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, u := range users {
		if u.Role == domain.RoleStudent && u.LinkedTeacherID == dashboardID {
			count++
		}
	}
	return count, nil
}

// ChangeDashboardID moves a teacher to a new dashboard ID and unlinks
// every student pointing at the old one. The cascade is destructive, so
// when students would be affected the call fails with
// ErrUnlinkConfirmRequired unless confirm is set. Returns the number of
// students unlinked.
func (s *Service) ChangeDashboardID(ctx context.Context, teacherUsername, newID string, confirm bool) (int, error) {
	newID = strings.TrimSpace(newID)
	if !dashboardIDPattern.MatchString(newID) {
		return 0, ErrBadDashboardID
	}
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return 0, err
	}
	var me *domain.User
	for i := range users {
		if users[i].Username == teacherUsername && users[i].Role == domain.RoleTeacher {
			me = &users[i]
			break
		}
	}
	if me == nil {
		return 0, ErrUserNotFound
	}
	if newID == me.DashboardID {
		return 0, ErrSameDashboardID
	}
	for _, u := range users {
		if u.Role == domain.RoleTeacher && u.DashboardID == newID {
			return 0, ErrDashboardIDTaken
		}
	}

	oldID := me.DashboardID
	unlinked := 0
	for _, u := range users {
		if u.Role == domain.RoleStudent && u.LinkedTeacherID == oldID {
			unlinked++
		}
	}
	if unlinked > 0 && !confirm {
		return unlinked, ErrUnlinkConfirmRequired
	}

	me.DashboardID = newID
	for i := range users {
		if users[i].Role == domain.RoleStudent && users[i].LinkedTeacherID == oldID {
			users[i].LinkedTeacherID = ""
		}
	}
	if err := store.PutList(ctx, s.kv, store.KeyUsers, users); err != nil {
		return 0, err
	}
	return unlinked, nil
}

// RemoveStudent unlinks a student from the teacher's class. The account
// itself is kept. Fails when the student is not in this teacher's class.
func (s *Service) RemoveStudent(ctx context.Context, teacher domain.User, studentUsername string) error {
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].Username != studentUsername || users[i].Role != domain.RoleStudent {
			continue
		}
		if users[i].LinkedTeacherID != teacher.DashboardID {
			return ErrStudentNotFound
		}
		users[i].LinkedTeacherID = ""
		return store.PutList(ctx, s.kv, store.KeyUsers, users)
	}
	return ErrStudentNotFound
}

// DeleteAccount removes the user. Deleting a teacher unlinks every student
// pointing at their dashboard ID; the student accounts themselves survive.
func (s *Service) DeleteAccount(ctx context.Context, username string) error {
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return err
	}
	var deleted *domain.User
	kept := users[:0]
	for i := range users {
		if users[i].Username == username {
			u := users[i]
			deleted = &u
			continue
		}
		kept = append(kept, users[i])
	}
	if deleted == nil {
		return ErrUserNotFound
	}
	if deleted.Role == domain.RoleTeacher {
		for i := range kept {
			if kept[i].Role == domain.RoleStudent && kept[i].LinkedTeacherID == deleted.DashboardID {
				kept[i].LinkedTeacherID = ""
			}
		}
	}
	return store.PutList(ctx, s.kv, store.KeyUsers, kept)
}

// Contacts derives who a user can message: a teacher sees the students
// linked to them, a student sees the teacher they are linked to (zero or
// one; a dangling link just yields no contacts).
func (s *Service) Contacts(ctx context.Context, user domain.User) ([]domain.User, error) {
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return nil, err
	}
	var contacts []domain.User
	for _, u := range users {
		switch user.Role {
		case domain.RoleTeacher:
			if u.Role == domain.RoleStudent && u.LinkedTeacherID == user.DashboardID {
				contacts = append(contacts, u)
			}
		case domain.RoleStudent:
			if u.Role == domain.RoleTeacher && u.DashboardID == user.LinkedTeacherID {
				contacts = append(contacts, u)
			}
		}
	}
	return contacts, nil
}

// ClassMembers returns everyone whose effective partition key matches:
// the owning teacher plus the linked students.
func (s *Service) ClassMembers(ctx context.Context, partitionKey string) ([]domain.User, error) {
	if partitionKey == "" {
		return nil, nil
	}
	users, err := store.GetList[domain.User](ctx, s.kv, store.KeyUsers)
	if err != nil {
		return nil, err
	}
	var members []domain.User
	for _, u := range users {
		if u.PartitionKey() == partitionKey {
			members = append(members, u)
		}
	}
	return members, nil
}

func teacherExists(users []domain.User, dashboardID string) bool {
	for _, u := range users {
		if u.Role == domain.RoleTeacher && u.DashboardID == dashboardID {
			return true
		}
	}
	return false
}
