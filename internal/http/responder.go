package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/collab-sessions/internal/application"
)

var (
	errBadRequestBody    = errors.New("無効なリクエスト形式です。")
	errInvalidSessionID  = errors.New("無効なセッション ID です。")
	errMissingBearer     = errors.New("認証トークンを指定してください")
	errMissingPrincipal  = errors.New("認証が必要です。")
	errUnknownServiceErr = errors.New("unknown error")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errUnknownServiceErr)
		return
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:    localizeValidationErrors(vErr),
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   localizedStatusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   localizedStatusMessage(http.StatusNotFound),
		})
	case errors.Is(err, application.ErrInvalidTransition):
		payload := errorResponse{
			ErrorCode: "INVALID_STATE",
			Message:   localizedStatusMessage(http.StatusConflict),
		}
		var sErr *application.StateError
		if errors.As(err, &sErr) {
			payload.Status = string(sErr.Current)
		}
		r.writeJSON(ctx, w, http.StatusConflict, payload)
	case errors.Is(err, application.ErrDependency):
		r.loggerFor(ctx).ErrorContext(ctx, "dependency failure", "error", err)
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "DEPENDENCY_UNAVAILABLE",
			Message:   localizedStatusMessage(http.StatusServiceUnavailable),
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたセッションが見つかりません。"
	case http.StatusConflict:
		return "セッションの現在の状態ではこの操作を実行できません。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusServiceUnavailable:
		return "一時的に処理できません。しばらくしてから再度お試しください。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "is required":
		return "必須項目です。"
	case "must differ from the host":
		return "ホスト以外のユーザーを指定してください。"
	case "must be one_time or recurring":
		return "one_time または recurring を指定してください。"
	case "is only allowed for recurring sessions":
		return "繰り返しセッションでのみ指定できます。"
	case "is required for recurring sessions":
		return "繰り返しセッションでは必須です。"
	case "must be weekly or biweekly":
		return "weekly または biweekly を指定してください。"
	case "requires a recurrence rule":
		return "繰り返しルールと併せて指定してください。"
	case "at least one time window is required":
		return "候補日時を 1 件以上指定してください。"
	case "start and end are required":
		return "開始日時と終了日時は必須です。"
	case "end must be after start":
		return "終了日時は開始日時より後である必要があります。"
	case "must be greater than zero":
		return "正の整数で指定してください。"
	case "must not be negative":
		return "0 以上の値を指定してください。"
	case "must be google_meet, zoom or manual":
		return "google_meet、zoom、manual のいずれかを指定してください。"
	case "must match one of the proposed times":
		return "提案された候補日時のいずれかを指定してください。"
	case "must be host or attendee":
		return "host または attendee を指定してください。"
	case "must be after from":
		return "終了日時は開始日時より後である必要があります。"
	case "must be an RFC 3339 timestamp":
		return "RFC 3339 形式の日時を指定してください。"
	case "must be an integer":
		return "整数で指定してください。"
	case "at least one of notes, outcomes or actual_duration_minutes is required":
		return "notes、outcomes、actual_duration_minutes のいずれかを指定してください。"
	case "violates a stored constraint":
		return "保存済みデータの制約に違反しています。"
	case "references a missing session":
		return "存在しないセッションが指定されています。"
	default:
		if strings.HasPrefix(message, "unknown status") {
			return "不明なステータスです: " + strings.TrimSpace(strings.TrimPrefix(message, "unknown status"))
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Status    string            `json:"current_status,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}
