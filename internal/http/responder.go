package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/logging"
)

var (
	errBadRequestBody       = errors.New("無効なリクエスト形式です。")
	errInvalidReservationID = errors.New("無効な予約 ID です。")
	errInvalidRoomID        = errors.New("無効な会議室 ID です。")
	errInvalidQuery         = errors.New("検索条件が正しくありません。")
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
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	switch kind {
	case "unauthorized":
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case "not_found":
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   "指定されたリソースが見つかりません。",
		})
	case "validation":
		var vErr *application.ValidationError
		errors.As(err, &vErr)
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		})
	case "conflict":
		var cErr *application.ConflictError
		errors.As(err, &cErr)
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "RESERVATION_CONFLICT",
			Message:   "指定の時間帯は既に予約されています。",
			Conflicts: toConflictDTOs(cErr),
		})
	case "persistence":
		r.loggerFor(ctx).ErrorContext(ctx, "storage unavailable", "error", err)
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "STORAGE_UNAVAILABLE",
			Message:   "データの保存に失敗しました。しばらくしてから再度お試しください。",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusServiceUnavailable:
		return "現在サービスを利用できません。"
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
	case "must be YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "must be HH:MM":
		return "時刻は HH:MM 形式で指定してください。"
	case "start must be before end":
		return "終了時刻は開始時刻より後である必要があります。"
	case "start must not be in the past":
		return "過去の日時は予約できません。"
	case "24:00 is only valid as an end time":
		return "24:00 は終了時刻にのみ指定できます。"
	case "at least one participant is required":
		return "参加人数は 1 名以上で指定してください。"
	case "unsupported recurrence kind":
		return "繰り返し種別が正しくありません。"
	case "a single booking has exactly one occurrence":
		return "繰り返しなしの予約は 1 回のみ指定できます。"
	case "room is not available for booking":
		return "指定された会議室は現在予約できません。"
	case "unknown or inactive meeting type":
		return "指定された会議種別は利用できません。"
	case "canceled reservations cannot be edited":
		return "キャンセル済みの予約は変更できません。"
	case "reservation is already canceled":
		return "この予約は既にキャンセルされています。"
	case "reservation was modified concurrently; reload and retry":
		return "予約が他の操作で更新されました。再読み込みしてからやり直してください。"
	case "no free slot remains on this date":
		return "この日に空いている時間帯はありません。"
	}

	var n int
	if _, err := fmt.Sscanf(message, "exceeds room capacity of %d", &n); err == nil {
		return fmt.Sprintf("参加人数が会議室の定員 (%d 名) を超えています。", n)
	}
	if _, err := fmt.Sscanf(message, "must be at most %d characters", &n); err == nil {
		return fmt.Sprintf("%d 文字以内で入力してください。", n)
	}
	if _, err := fmt.Sscanf(message, "count must be between 1 and %d", &n); err == nil {
		return fmt.Sprintf("繰り返し回数は 1 から %d の範囲で指定してください。", n)
	}
	return message
}

type conflictDTO struct {
	Date          string `json:"date"`
	ReservationID string `json:"reservation_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func toConflictDTOs(cErr *application.ConflictError) []conflictDTO {
	if cErr == nil || len(cErr.Conflicts) == 0 {
		return nil
	}
	out := make([]conflictDTO, 0, len(cErr.Conflicts))
	for _, c := range cErr.Conflicts {
		out = append(out, conflictDTO{
			Date:          c.Date.String(),
			ReservationID: c.Reservation.ID,
			StartTime:     c.Reservation.Start.String(),
			EndTime:       c.Reservation.End.String(),
		})
	}
	return out
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}
