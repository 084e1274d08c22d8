// Package http exposes the session lifecycle over HTTP/JSON.
//
// Every route below requires an `Authorization: Bearer <jwt>` header; the
// verified subject becomes the acting principal.
//   - POST /sessions: proposes a session hosted by the caller. Body: the
//     `createSessionRequest` payload in session_dto.go. Returns 201.
//   - GET /sessions: lists the caller's sessions. Query: role, status (csv),
//     from, to (RFC 3339), plan_id, limit.
//   - GET /sessions/upcoming, GET /sessions/past: open and closed sessions,
//     bounded by the optional limit query parameter.
//   - GET /sessions/{id}, DELETE /sessions/{id}: fetch or delete one session.
//     Delete is only possible while proposed or cancelled and returns 204.
//   - POST /sessions/{id}/confirm: body {"selected_time":{"start","end"}}; the
//     window must equal one of the proposed times.
//   - POST /sessions/{id}/cancel: optional body {"reason"}.
//   - POST /sessions/{id}/complete: optional body with session_notes, outcomes
//     and actual_duration_minutes.
//   - POST /sessions/{id}/no-show: no body.
//   - PUT /sessions/{id}/notes: same body as complete; at least one field.
//   - GET /sessions/{id}/reminders, POST /sessions/{id}/reminders: list the
//     reminder rows or record any that are missing.
//
// Errors carry {"error_code","message","errors"}: 422 for validation, 403 for
// permission, 404 for unknown sessions, 409 for lifecycle conflicts and 503
// when a store is unavailable.
package http
