package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/scheduler"
)

type roomService interface {
	ListRooms(ctx context.Context) ([]scheduler.Room, error)
	ListMeetingTypes(ctx context.Context) ([]scheduler.MeetingType, error)
	SuggestSlot(ctx context.Context, query application.SlotQuery) (scheduler.Interval, error)
	RecomputeEndTime(ctx context.Context, query application.SlotQuery) (scheduler.TimeOfDay, error)
	ListAvailableStartSlots(ctx context.Context, query application.SlotQuery) ([]scheduler.TimeOfDay, error)
	ListAvailableEndSlots(ctx context.Context, query application.SlotQuery) ([]scheduler.TimeOfDay, error)
}

// RoomHandler serves the room catalog and the per room planning helpers.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomDTO{ID: room.ID, Name: room.Name, Capacity: room.Capacity})
	}
	h.log(r.Context(), "List").DebugContext(r.Context(), "rooms listed", "result_count", len(out))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: out})
}

func (h *RoomHandler) ListMeetingTypes(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	types, err := h.service.ListMeetingTypes(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]meetingTypeDTO, 0, len(types))
	for _, mt := range types {
		out = append(out, meetingTypeDTO{ID: mt.ID, Name: mt.Name})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMeetingTypesResponse{MeetingTypes: out})
}

func (h *RoomHandler) Suggestion(w http.ResponseWriter, r *http.Request) {
	query, ok := h.slotQuery(w, r)
	if !ok {
		return
	}
	slot, err := h.service.SuggestSlot(r.Context(), query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotResponse{
		StartTime: slot.Start.String(),
		EndTime:   slot.End.String(),
	})
}

func (h *RoomHandler) EndTime(w http.ResponseWriter, r *http.Request) {
	query, ok := h.slotQuery(w, r)
	if !ok {
		return
	}
	end, err := h.service.RecomputeEndTime(r.Context(), query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	// already validated by the service
	start, _ := scheduler.ParseTimeOfDay(query.Start)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotResponse{
		StartTime: start.String(),
		EndTime:   end.String(),
	})
}

func (h *RoomHandler) StartSlots(w http.ResponseWriter, r *http.Request) {
	query, ok := h.slotQuery(w, r)
	if !ok {
		return
	}
	slots, err := h.service.ListAvailableStartSlots(r.Context(), query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotsResponse{Slots: formatSlots(slots)})
}

func (h *RoomHandler) EndSlots(w http.ResponseWriter, r *http.Request) {
	query, ok := h.slotQuery(w, r)
	if !ok {
		return
	}
	slots, err := h.service.ListAvailableEndSlots(r.Context(), query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotsResponse{Slots: formatSlots(slots)})
}

func (h *RoomHandler) slotQuery(w http.ResponseWriter, r *http.Request) (application.SlotQuery, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.SlotQuery{}, false
	}
	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return application.SlotQuery{}, false
	}
	return buildSlotQuery(roomID, r.URL.Query()), true
}

func buildSlotQuery(roomID string, values url.Values) application.SlotQuery {
	return application.SlotQuery{
		RoomID:    roomID,
		Date:      strings.TrimSpace(values.Get("date")),
		Start:     strings.TrimSpace(values.Get("start")),
		ExcludeID: strings.TrimSpace(values.Get("exclude_id")),
	}
}

func formatSlots(slots []scheduler.TimeOfDay) []string {
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.String())
	}
	return out
}

type roomDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type meetingTypeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listMeetingTypesResponse struct {
	MeetingTypes []meetingTypeDTO `json:"meeting_types"`
}

type slotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	Slots []string `json:"slots"`
}
