package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"studentsphere/internal/chat"
	"studentsphere/internal/classchat"
	"studentsphere/internal/content"
	"studentsphere/internal/directory"
	"studentsphere/internal/live"
	"studentsphere/internal/util"
	"studentsphere/internal/watch"
	"studentsphere/pkg/domain"
	"studentsphere/pkg/session"
	"studentsphere/pkg/store"
)

// Upload payloads arrive as base64 data URIs inside the JSON body, so the
// body limit must sit well above the inline ceiling: oversized files are
// still accepted (and recorded as simulated) rather than rejected at the
// transport.
const (
	maxBodyBytes       = 1 << 23
	maxUploadBodyBytes = 1 << 26

	defaultWaitSeconds = 20
	maxWaitSeconds     = 25
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Directory  *directory.Service
	Content    *content.Service
	Chat       *chat.Service
	ClassChat  *classchat.Service
	Live       *live.Service
	Feed       *watch.Feed
	Sessions   *session.Manager
	CORSOrigin string
}

// Server exposes the portal's HTTP endpoints.
type Server struct {
	dir        *directory.Service
	content    *content.Service
	chat       *chat.Service
	classChat  *classchat.Service
	live       *live.Service
	feed       *watch.Feed
	sessions   *session.Manager
	corsOrigin string
	mux        *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		dir:        cfg.Directory,
		content:    cfg.Content,
		chat:       cfg.Chat,
		classChat:  cfg.ClassChat,
		live:       cfg.Live,
		feed:       cfg.Feed,
		sessions:   cfg.Sessions,
		corsOrigin: cfg.CORSOrigin,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.corsOrigin, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.Handle("/auth/logout", s.withUser(s.handleLogout))
	s.mux.Handle("/auth/me", s.withUser(s.handleMe))
	s.mux.Handle("/auth/account", s.withUser(s.handleAccount))

	s.mux.Handle("/students", s.withUser(s.handleStudents))
	s.mux.Handle("/students/", s.withUser(s.handleStudent))
	s.mux.Handle("/settings/dashboard-id", s.withUser(s.handleDashboardID))
	s.mux.Handle("/settings/dashboard-id/impact", s.withUser(s.handleDashboardImpact))
	s.mux.Handle("/settings/teacher-link", s.withUser(s.handleTeacherLink))

	s.mux.Handle("/uploads", s.withUser(s.handleUploads))
	s.mux.Handle("/uploads/", s.withUser(s.handleUpload))

	s.mux.Handle("/contacts", s.withUser(s.handleContacts))
	s.mux.Handle("/messages", s.withUser(s.handleMessages))
	s.mux.Handle("/class/messages", s.withUser(s.handleClassMessages))
	s.mux.Handle("/class/members", s.withUser(s.handleClassMembers))

	s.mux.Handle("/live/start", s.withUser(s.handleLiveStart))
	s.mux.Handle("/live/stop", s.withUser(s.handleLiveStop))
	s.mux.Handle("/live/status", s.withUser(s.handleLiveStatus))
	s.mux.Handle("/live/room", s.withUser(s.handleLiveRoom))
	s.mux.Handle("/live/leave", s.withUser(s.handleLiveLeave))

	s.mux.Handle("/changes", s.withUser(s.handleChanges))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, string, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := s.sessions.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, found, err := s.dir.Get(r.Context(), claims.Username)
		if err != nil {
			fail(w, err)
			return
		}
		if !found {
			// Account deleted while the token was still valid.
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, token, user)
	})
}

func requireTeacher(w http.ResponseWriter, user domain.User) bool {
	if user.Role != domain.RoleTeacher {
		writeError(w, http.StatusForbidden, "teachers only")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type registerRequest struct {
	Username              string `json:"username"`
	UserID                string `json:"userId"`
	Role                  string `json:"role"`
	DashboardID           string `json:"dashboardId"`
	ConnectID             string `json:"connectId"`
	ConfirmUnknownTeacher bool   `json:"confirmUnknownTeacher"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if !decodeBody(w, r, maxBodyBytes, &req) {
		return
	}
	user, err := s.dir.Register(r.Context(), directory.RegisterInput{
		Username:              req.Username,
		Credential:            req.UserID,
		Role:                  domain.UserRole(req.Role),
		DashboardID:           req.DashboardID,
		ConnectID:             req.ConnectID,
		ConfirmUnknownTeacher: req.ConfirmUnknownTeacher,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user.Public()})
}

type loginRequest struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if !decodeBody(w, r, maxBodyBytes, &req) {
		return
	}
	user, err := s.dir.Login(r.Context(), req.Username, req.UserID)
	if err != nil {
		fail(w, err)
		return
	}
	token, err := s.sessions.Issue(user)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user.Public()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, token string, _ domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.sessions.Revoke(token); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request, token string, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.dir.DeleteAccount(r.Context(), user.Username); err != nil {
		fail(w, err)
		return
	}
	_ = s.sessions.Revoke(token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !requireTeacher(w, user) {
		return
	}
	students, err := s.dir.Contacts(r.Context(), user)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": publicUsers(students)})
}

func (s *Server) handleStudent(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if !requireTeacher(w, user) {
		return
	}
	username := strings.TrimPrefix(r.URL.Path, "/students/")
	if username == "" || strings.Contains(username, "/") {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	if err := s.dir.RemoveStudent(r.Context(), user, username); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type dashboardIDRequest struct {
	NewID   string `json:"newId"`
	Confirm bool   `json:"confirm"`
}

func (s *Server) handleDashboardID(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !requireTeacher(w, user) {
		return
	}
	var req dashboardIDRequest
	if !decodeBody(w, r, maxBodyBytes, &req) {
		return
	}
	unlinked, err := s.dir.ChangeDashboardID(r.Context(), user.Username, req.NewID, req.Confirm)
	if errors.Is(err, directory.ErrUnlinkConfirmRequired) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":          err.Error(),
			"linkedStudents": unlinked,
		})
		return
	}
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboardId": req.NewID, "unlinked": unlinked})
}

func (s *Server) handleDashboardImpact(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !requireTeacher(w, user) {
		return
	}
	count, err := s.dir.CountLinkedStudents(r.Context(), user.DashboardID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"linkedStudents": count})
}

type teacherLinkRequest struct {
	DashboardID string `json:"dashboardId"`
}

func (s *Server) handleTeacherLink(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if user.Role != domain.RoleStudent {
		writeError(w, http.StatusForbidden, "students only")
		return
	}
	var req teacherLinkRequest
	if !decodeBody(w, r, maxBodyBytes, &req) {
		return
	}
	teacher, err := s.dir.Relink(r.Context(), user.Username, req.DashboardID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teacher": teacher.Public()})
}

type uploadRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		if !requireTeacher(w, user) {
			return
		}
		var req uploadRequest
		if !decodeBody(w, r, maxUploadBodyBytes, &req) {
			return
		}
		up, err := s.content.Upload(r.Context(), user, req.Name, domain.UploadType(req.Type), req.Data)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"upload": up})
	case http.MethodGet:
		uploads, err := s.content.List(r.Context(), user.PartitionKey())
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"uploads": uploads})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/uploads/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		up, url, err := s.content.View(r.Context(), id)
		if err != nil {
			fail(w, err)
			return
		}
		resp := map[string]any{"upload": up}
		if url != "" {
			resp["url"] = url
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		if !requireTeacher(w, user) {
			return
		}
		if err := s.content.Delete(r.Context(), user, id); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	contacts, err := s.dir.Contacts(r.Context(), user)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": publicUsers(contacts)})
}

type messageRequest struct {
	Receiver  string `json:"receiver"`
	Text      string `json:"text"`
	Media     string `json:"media"`
	MediaType string `json:"mediaType"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		var req messageRequest
		if !decodeBody(w, r, maxUploadBodyBytes, &req) {
			return
		}
		msg, err := s.chat.Send(r.Context(), user, req.Receiver, req.Text, req.Media, req.MediaType)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
	case http.MethodGet:
		other := r.URL.Query().Get("with")
		if other == "" {
			writeError(w, http.StatusBadRequest, "with parameter is required")
			return
		}
		msgs, err := s.chat.Conversation(r.Context(), user.Username, other)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
	default:
		methodNotAllowed(w)
	}
}

type classMessageRequest struct {
	Text      string `json:"text"`
	Media     string `json:"media"`
	MediaType string `json:"mediaType"`
}

func (s *Server) handleClassMessages(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		var req classMessageRequest
		if !decodeBody(w, r, maxUploadBodyBytes, &req) {
			return
		}
		msg, err := s.classChat.Send(r.Context(), user, req.Text, req.Media, req.MediaType)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
	case http.MethodGet:
		key, err := s.classChat.Resolve(user)
		if err != nil {
			fail(w, err)
			return
		}
		msgs, err := s.classChat.History(r.Context(), key)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleClassMembers(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key, err := s.classChat.Resolve(user)
	if err != nil {
		fail(w, err)
		return
	}
	count, err := s.classChat.MemberCount(r.Context(), key)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleLiveStart(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !requireTeacher(w, user) {
		return
	}
	if err := s.live.Start(r.Context(), user.DashboardID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

func (s *Server) handleLiveStop(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !requireTeacher(w, user) {
		return
	}
	if err := s.live.Stop(r.Context(), user.DashboardID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleLiveStatus(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key := user.PartitionKey()
	if key == "" {
		writeJSON(w, http.StatusOK, map[string]any{"live": false})
		return
	}
	sess, ok, err := s.live.Session(r.Context(), key)
	if err != nil {
		fail(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"live": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"live": true, "startTime": sess.StartTime})
}

func (s *Server) handleLiveRoom(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key, err := s.classChat.Resolve(user)
	if err != nil {
		fail(w, err)
		return
	}
	room := s.live.Room(key)
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":      room.Domain,
		"name":        room.Name,
		"displayName": user.Username,
	})
}

func (s *Server) handleLiveLeave(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.live.Leave(r.Context(), user); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// handleChanges long-polls the change feed for the keys this user can see.
// The client passes the revision it last saw; the response carries the new
// revision to pass next time. A timeout returns changed: [] with the
// current revision, which is a normal "nothing happened" answer.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request, _ string, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	since, err := strconv.ParseUint(r.URL.Query().Get("revision"), 10, 64)
	if err != nil && r.URL.Query().Get("revision") != "" {
		writeError(w, http.StatusBadRequest, "revision must be a number")
		return
	}
	wait := defaultWaitSeconds
	if raw := r.URL.Query().Get("timeoutSeconds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "timeoutSeconds must be a non-negative number")
			return
		}
		if n > maxWaitSeconds {
			n = maxWaitSeconds
		}
		wait = n
	}
	keys := watchKeysFor(user)
	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		filtered := keys[:0]
		for _, key := range keys {
			if strings.HasPrefix(key, prefix) {
				filtered = append(filtered, key)
			}
		}
		keys = filtered
		if len(keys) == 0 {
			writeError(w, http.StatusBadRequest, "prefix matches no watchable keys")
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(wait)*time.Second)
	defer cancel()

	changed, rev, err := s.feed.Wait(ctx, keys, since)
	if err != nil {
		fail(w, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "revision": rev})
}

// watchKeysFor limits the change feed to the collections this user reads:
// the shared directory, uploads, and message log, plus the class broadcast
// and live-session markers when the user belongs to a class.
func watchKeysFor(user domain.User) []string {
	keys := []string{store.KeyUsers, store.KeyUploads, store.KeyMessages}
	if partition := user.PartitionKey(); partition != "" {
		keys = append(keys, store.ClassChatKey(partition), store.LiveSessionKey(partition))
	}
	return keys
}

func publicUsers(users []domain.User) []domain.User {
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
