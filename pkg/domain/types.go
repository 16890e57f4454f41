package domain

import "time"

type UserRole string

const (
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

type UploadType string

const (
	TypeImage UploadType = "image"
	TypeVideo UploadType = "video"
	TypePDF   UploadType = "pdf"
	TypeFile  UploadType = "file"
)

// User is a portal account. Username is the primary key everywhere;
// DashboardID is set for teachers only and doubles as the class partition
// key, LinkedTeacherID is set for students and may dangle if the teacher
// changed or deleted their dashboard ID.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	CredentialHash  string    `json:"credentialHash,omitempty"`
	Role            UserRole  `json:"role"`
	DashboardID     string    `json:"dashboardId,omitempty"`
	LinkedTeacherID string    `json:"linkedTeacherId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Public returns a copy safe to serve to clients.
func (u User) Public() User {
	u.CredentialHash = ""
	return u
}

// PartitionKey resolves the class a user belongs to: a teacher's own
// dashboard ID, or the teacher ID a student is linked to. Empty means the
// user has no class.
func (u User) PartitionKey() string {
	if u.Role == RoleTeacher {
		return u.DashboardID
	}
	return u.LinkedTeacherID
}

// Upload is a shared file. Data carries the inline base64 data URI and is
// nil when the encoded payload exceeded the inline ceiling; IsSimulated
// marks that case (metadata kept, content dropped). StorageKey is set only
// when an object-store archive captured the oversized payload.
type Upload struct {
	ID          string     `json:"id"`
	TeacherID   string     `json:"teacherId"`
	Name        string     `json:"name"`
	Type        UploadType `json:"type"`
	Date        time.Time  `json:"date"`
	Data        *string    `json:"data"`
	IsSimulated bool       `json:"isSimulated"`
	Pages       int        `json:"pages,omitempty"`
	StorageKey  string     `json:"storageKey,omitempty"`
}

// DirectMessage is one entry in the append-only pairwise message log.
type DirectMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Text      string    `json:"text"`
	Media     *string   `json:"media"`
	MediaType string    `json:"mediaType,omitempty"`
	Date      time.Time `json:"date"`
}

// ClassMessage is one entry in a class-wide broadcast log. Role is
// denormalized at send time so history renders without a directory lookup.
type ClassMessage struct {
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	Text      string    `json:"text"`
	Media     *string   `json:"media"`
	MediaType string    `json:"mediaType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const LiveStatus = "live"

// LiveSession marks a running class. Absence of the record means not live.
type LiveSession struct {
	Status    string    `json:"status"`
	StartTime time.Time `json:"startTime"`
}
