package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/export"
	"github.com/example/room-scheduler/internal/scheduler"
)

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) ([]scheduler.Reservation, error)
	UpdateReservation(ctx context.Context, params application.UpdateReservationParams) (scheduler.Reservation, error)
	CancelReservation(ctx context.Context, params application.CancelReservationParams) (scheduler.Reservation, error)
	ListReservations(ctx context.Context, params application.ListReservationsParams) ([]scheduler.Reservation, error)
	HasConflict(ctx context.Context, query application.ConflictQuery) (scheduler.Reservation, bool, error)
	ListRooms(ctx context.Context) ([]scheduler.Room, error)
	ListMeetingTypes(ctx context.Context) ([]scheduler.MeetingType, error)
}

// ReservationHandler serves the reservation endpoints.
type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	created, err := h.service.CreateReservation(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listReservationsResponse{
		Reservations: toReservationDTOs(created),
	})
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	var req updateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	updated, err := h.service.UpdateReservation(r.Context(), application.UpdateReservationParams{
		Principal:     principal,
		ReservationID: reservationID,
		Patch:         req.toPatch(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(updated)})
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	var req cancelReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	canceled, err := h.service.CancelReservation(r.Context(), application.CancelReservationParams{
		Principal:     principal,
		ReservationID: reservationID,
		Reason:        req.Reason,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(canceled)})
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, err := buildListParams(r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	reservations, err := h.service.ListReservations(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{
		Reservations: toReservationDTOs(reservations),
	})
}

// Export writes the listing selected by the query as an XLSX workbook.
func (h *ReservationHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "ReservationHandler", "Export")

	params, err := buildListParams(r.URL.Query())
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	reservations, err := h.service.ListReservations(ctx, params)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	catalog, err := h.catalog(ctx)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, reservations, catalog); err != nil {
		logger.ErrorContext(ctx, "failed to render workbook", "error", err)
		h.responder.writeError(ctx, w, http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="reservations.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.WarnContext(ctx, "failed to stream workbook", "error", err)
	}
}

// Conflicts reports whether a candidate interval overlaps an active reservation.
func (h *ReservationHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req conflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	hit, conflict, err := h.service.HasConflict(r.Context(), application.ConflictQuery{
		RoomID:    req.RoomID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := conflictResponse{Conflict: conflict}
	if conflict {
		dto := toReservationDTO(hit)
		resp.Reservation = &dto
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *ReservationHandler) catalog(ctx context.Context) (export.Catalog, error) {
	rooms, err := h.service.ListRooms(ctx)
	if err != nil {
		return export.Catalog{}, err
	}
	types, err := h.service.ListMeetingTypes(ctx)
	if err != nil {
		return export.Catalog{}, err
	}
	catalog := export.Catalog{
		Rooms:        make(map[string]string, len(rooms)),
		MeetingTypes: make(map[string]string, len(types)),
	}
	for _, room := range rooms {
		catalog.Rooms[room.ID] = room.Name
	}
	for _, mt := range types {
		catalog.MeetingTypes[mt.ID] = mt.Name
	}
	return catalog, nil
}

func buildListParams(values url.Values) (application.ListReservationsParams, error) {
	params := application.ListReservationsParams{
		RoomID: strings.TrimSpace(values.Get("room_id")),
		Date:   strings.TrimSpace(values.Get("date")),
	}
	if raw := strings.TrimSpace(values.Get("include_canceled")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return application.ListReservationsParams{}, errInvalidQuery
		}
		params.IncludeCanceled = include
	}
	return params, nil
}

type recurrenceRequest struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

type createReservationRequest struct {
	RoomID           string             `json:"room_id"`
	Date             string             `json:"date"`
	StartTime        string             `json:"start_time"`
	EndTime          string             `json:"end_time"`
	MeetingTypeID    *string            `json:"meeting_type_id"`
	ParticipantCount int                `json:"participant_count"`
	Notes            string             `json:"notes"`
	Recurrence       *recurrenceRequest `json:"recurrence"`
}

func (r createReservationRequest) toInput() application.ReservationInput {
	input := application.ReservationInput{
		RoomID:           strings.TrimSpace(r.RoomID),
		Date:             strings.TrimSpace(r.Date),
		StartTime:        strings.TrimSpace(r.StartTime),
		EndTime:          strings.TrimSpace(r.EndTime),
		MeetingTypeID:    r.MeetingTypeID,
		ParticipantCount: r.ParticipantCount,
		Notes:            r.Notes,
		Recurrence:       application.RecurrenceInput{Count: 1},
	}
	if r.Recurrence != nil {
		input.Recurrence = application.RecurrenceInput{Kind: r.Recurrence.Kind, Count: r.Recurrence.Count}
	}
	return input
}

type updateReservationRequest struct {
	RoomID           *string `json:"room_id"`
	Date             *string `json:"date"`
	StartTime        *string `json:"start_time"`
	EndTime          *string `json:"end_time"`
	MeetingTypeID    *string `json:"meeting_type_id"`
	ParticipantCount *int    `json:"participant_count"`
	Notes            *string `json:"notes"`
}

func (r updateReservationRequest) toPatch() application.ReservationPatch {
	return application.ReservationPatch{
		RoomID:           r.RoomID,
		Date:             r.Date,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		MeetingTypeID:    r.MeetingTypeID,
		ParticipantCount: r.ParticipantCount,
		Notes:            r.Notes,
	}
}

type cancelReservationRequest struct {
	Reason string `json:"reason"`
}

type conflictRequest struct {
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	ExcludeID string `json:"exclude_id"`
}

type conflictResponse struct {
	Conflict    bool            `json:"conflict"`
	Reservation *reservationDTO `json:"reservation,omitempty"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type changeEntryDTO struct {
	Timestamp string `json:"timestamp"`
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	Actor     string `json:"actor"`
}

type reservationDTO struct {
	ID               string           `json:"id"`
	RoomID           string           `json:"room_id"`
	RequesterID      string           `json:"requester_id"`
	RequesterName    string           `json:"requester_name"`
	Date             string           `json:"date"`
	StartTime        string           `json:"start_time"`
	EndTime          string           `json:"end_time"`
	MeetingTypeID    *string          `json:"meeting_type_id,omitempty"`
	ParticipantCount int              `json:"participant_count"`
	Notes            string           `json:"notes"`
	Canceled         bool             `json:"canceled"`
	CanceledAt       *string          `json:"canceled_at,omitempty"`
	CancelReason     string           `json:"cancel_reason,omitempty"`
	ChangeHistory    []changeEntryDTO `json:"change_history,omitempty"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
}

func toReservationDTO(r scheduler.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:               r.ID,
		RoomID:           r.RoomID,
		RequesterID:      r.RequesterID,
		RequesterName:    r.RequesterName,
		Date:             r.Date.String(),
		StartTime:        r.Start.String(),
		EndTime:          r.End.String(),
		MeetingTypeID:    r.MeetingTypeID,
		ParticipantCount: r.ParticipantCount,
		Notes:            r.Notes,
		Canceled:         r.Canceled,
		CancelReason:     r.CancelReason,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.CanceledAt != nil {
		at := r.CanceledAt.UTC().Format(time.RFC3339Nano)
		dto.CanceledAt = &at
	}
	if len(r.ChangeHistory) > 0 {
		dto.ChangeHistory = make([]changeEntryDTO, 0, len(r.ChangeHistory))
		for _, entry := range r.ChangeHistory {
			dto.ChangeHistory = append(dto.ChangeHistory, changeEntryDTO{
				Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
				Field:     entry.Field,
				OldValue:  entry.OldValue,
				NewValue:  entry.NewValue,
				Actor:     entry.Actor,
			})
		}
	}
	return dto
}

func toReservationDTOs(reservations []scheduler.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, toReservationDTO(r))
	}
	return out
}
