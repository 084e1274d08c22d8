package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/collab-sessions/internal/application"
)

type sessionService interface {
	CreateSession(ctx context.Context, params application.CreateSessionParams) (application.Session, error)
	GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.Session, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.Session, error)
	UpcomingSessions(ctx context.Context, principal application.Principal, limit int) ([]application.Session, error)
	PastSessions(ctx context.Context, principal application.Principal, limit int) ([]application.Session, error)
	ConfirmSession(ctx context.Context, params application.ConfirmSessionParams) (application.Session, error)
	CancelSession(ctx context.Context, params application.CancelSessionParams) (application.Session, error)
	CompleteSession(ctx context.Context, params application.CompleteSessionParams) (application.Session, error)
	MarkNoShow(ctx context.Context, principal application.Principal, sessionID string) (application.Session, error)
	UpdateNotes(ctx context.Context, params application.UpdateNotesParams) (application.Session, error)
	DeleteSession(ctx context.Context, principal application.Principal, sessionID string) error
	ListReminders(ctx context.Context, principal application.Principal, sessionID string) ([]application.Reminder, error)
	RetryReminders(ctx context.Context, principal application.Principal, sessionID string) ([]application.Reminder, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, vErr := req.toInput()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "attendee_id", input.AttendeeID)

	session, err := h.service.CreateSession(r.Context(), application.CreateSessionParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", session.ID).InfoContext(r.Context(), "session proposed")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "Get")
	if !ok {
		return
	}

	session, err := h.service.GetSession(r.Context(), principal, sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}

	filter, vErr := parseSessionFilter(r.URL.Query())
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), application.ListSessionsParams{
		Principal: principal,
		Filter:    filter,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

func (h *SessionHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	h.listWindow(w, r, sessionService.UpcomingSessions)
}

func (h *SessionHandler) Past(w http.ResponseWriter, r *http.Request) {
	h.listWindow(w, r, sessionService.PastSessions)
}

func (h *SessionHandler) listWindow(w http.ResponseWriter, r *http.Request, list func(sessionService, context.Context, application.Principal, int) ([]application.Session, error)) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}

	limit, vErr := parseLimit(r.URL.Query())
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	sessions, err := list(h.service, r.Context(), principal, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "Confirm")
	if !ok {
		return
	}

	var req confirmSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.log(r.Context(), "Confirm", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode confirm request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	selected, vErr := req.toWindow()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	h.respondTransition(w, r, "Confirm", func(ctx context.Context) (application.Session, error) {
		return h.service.ConfirmSession(ctx, application.ConfirmSessionParams{
			Principal:    principal,
			SessionID:    sessionID,
			SelectedTime: selected,
		})
	})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "Cancel")
	if !ok {
		return
	}

	var req cancelSessionRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		h.log(r.Context(), "Cancel", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode cancel request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	h.respondTransition(w, r, "Cancel", func(ctx context.Context) (application.Session, error) {
		return h.service.CancelSession(ctx, application.CancelSessionParams{
			Principal: principal,
			SessionID: sessionID,
			Reason:    req.Reason,
		})
	})
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "Complete")
	if !ok {
		return
	}

	var req outcomeRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		h.log(r.Context(), "Complete", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode completion request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	h.respondTransition(w, r, "Complete", func(ctx context.Context) (application.Session, error) {
		return h.service.CompleteSession(ctx, application.CompleteSessionParams{
			Principal:             principal,
			SessionID:             sessionID,
			Notes:                 req.Notes,
			Outcomes:              req.outcomes(),
			ActualDurationMinutes: req.ActualDurationMinutes,
		})
	})
}

func (h *SessionHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "MarkNoShow")
	if !ok {
		return
	}

	h.respondTransition(w, r, "MarkNoShow", func(ctx context.Context) (application.Session, error) {
		return h.service.MarkNoShow(ctx, principal, sessionID)
	})
}

func (h *SessionHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "UpdateNotes")
	if !ok {
		return
	}

	var req outcomeRequest
	if err := decodeBody(r, &req); err != nil {
		h.log(r.Context(), "UpdateNotes", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode notes request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	h.respondTransition(w, r, "UpdateNotes", func(ctx context.Context) (application.Session, error) {
		return h.service.UpdateNotes(ctx, application.UpdateNotesParams{
			Principal:             principal,
			SessionID:             sessionID,
			Notes:                 req.Notes,
			Outcomes:              req.outcomes(),
			ActualDurationMinutes: req.ActualDurationMinutes,
		})
	})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "Delete")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID)
	if err := h.service.DeleteSession(r.Context(), principal, sessionID); err != nil {
		logger.ErrorContext(r.Context(), "session delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SessionHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "ListReminders")
	if !ok {
		return
	}

	reminders, err := h.service.ListReminders(r.Context(), principal, sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRemindersResponse{Reminders: toReminderDTOs(reminders)})
}

func (h *SessionHandler) CreateReminders(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := h.beginForSession(w, r, "CreateReminders")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "CreateReminders", "principal_id", principal.UserID)
	reminders, err := h.service.RetryReminders(r.Context(), principal, sessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "reminder retry failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reminders recorded", "count", len(reminders))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRemindersResponse{Reminders: toReminderDTOs(reminders)})
}

func (h *SessionHandler) respondTransition(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context) (application.Session, error)) {
	logger := h.log(r.Context(), operation)

	session, err := apply(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "session transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session transitioned", "status", session.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// begin guards against an unwired handler and resolves the principal.
func (h *SessionHandler) begin(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.Principal{}, false
	}
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal.UserID == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return application.Principal{}, false
	}
	return principal, true
}

func (h *SessionHandler) beginForSession(w http.ResponseWriter, r *http.Request, operation string) (application.Principal, string, bool) {
	principal, ok := h.begin(w, r)
	if !ok {
		return application.Principal{}, "", false
	}
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing session id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return application.Principal{}, "", false
	}
	return principal, strings.TrimSpace(sessionID), true
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := decodeBody(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
