package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/recurrence"
	"github.com/example/room-scheduler/internal/scheduler"
)

const maxNotesLength = 1000

// ReservationReader exposes read access to stored reservations.
type ReservationReader interface {
	ListReservations(ctx context.Context, filter ReservationFilter) ([]scheduler.Reservation, error)
	GetReservation(ctx context.Context, id string) (scheduler.Reservation, error)
}

// ReservationTx is the store view available inside a transaction.
type ReservationTx interface {
	ReservationReader
	InsertBatch(ctx context.Context, reservations []scheduler.Reservation) error
	UpdateFields(ctx context.Context, id string, fields ReservationFields) (scheduler.Reservation, error)
	// LockRoomDay serializes writers of one room and date until the transaction ends.
	LockRoomDay(ctx context.Context, roomID string, date scheduler.Date) error
}

// ReservationStore captures the persistence interactions needed by the service.
// Writes only happen through WithinTransaction; fn's error rolls everything back.
type ReservationStore interface {
	ReservationReader
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx ReservationTx) error) error
}

// RoomCatalog exposes room lookup operations.
type RoomCatalog interface {
	ListActiveRooms(ctx context.Context) ([]scheduler.Room, error)
	GetRoom(ctx context.Context, id string) (scheduler.Room, error)
}

// MeetingTypeCatalog exposes meeting type lookup operations.
type MeetingTypeCatalog interface {
	ListActiveTypes(ctx context.Context) ([]scheduler.MeetingType, error)
}

// Locker serializes work across processes for a set of keys. The returned
// unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// EventPublisher delivers committed reservation changes to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, events ...ReservationEvent) error
}

// Recorder receives reservation counters.
type Recorder interface {
	ReservationsCreated(count int)
	ReservationConflict()
	ReservationUpdated()
	ReservationCanceled()
}

// RoomDayKey names the serialization point for one room and date.
func RoomDayKey(roomID string, date scheduler.Date) string {
	return "room:" + roomID + ":" + date.String()
}

// ReservationServiceConfig wires the collaborators of ReservationService.
type ReservationServiceConfig struct {
	Store        ReservationStore
	Rooms        RoomCatalog
	MeetingTypes MeetingTypeCatalog
	Locker       Locker
	Events       EventPublisher
	Metrics      Recorder
	Planner      *scheduler.Planner
	Recurrence   *recurrence.Engine
	// Location is the portal's timezone used for "today" and past checks.
	Location    *time.Location
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// ReservationService orchestrates validation, conflict checks, recurrence and
// persistence for room reservations.
type ReservationService struct {
	store        ReservationStore
	rooms        RoomCatalog
	meetingTypes MeetingTypeCatalog
	locker       Locker
	events       EventPublisher
	metrics      Recorder
	planner      *scheduler.Planner
	recurrence   *recurrence.Engine
	location     *time.Location
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService constructs a reservation service, filling defaults for
// optional collaborators.
func NewReservationService(cfg ReservationServiceConfig) *ReservationService {
	s := &ReservationService{
		store:        cfg.Store,
		rooms:        cfg.Rooms,
		meetingTypes: cfg.MeetingTypes,
		locker:       cfg.Locker,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		planner:      cfg.Planner,
		recurrence:   cfg.Recurrence,
		location:     cfg.Location,
		idGenerator:  cfg.IDGenerator,
		now:          cfg.Now,
		logger:       defaultLogger(cfg.Logger),
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.planner == nil {
		s.planner = scheduler.NewPlanner(scheduler.DefaultPolicy())
	}
	if s.recurrence == nil {
		s.recurrence = recurrence.NewEngine(recurrence.DefaultMaxOccurrences)
	}
	if s.location == nil {
		s.location = time.FixedZone("JST", 9*60*60)
	}
	if s.idGenerator == nil {
		s.idGenerator = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation validates the request, expands its recurrence and writes
// every occurrence in one transaction. A conflict on any date rejects the whole
// series with a *ConflictError listing each conflicting date.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (created []scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	input := params.Input
	principal := params.Principal
	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", principal.UserID,
		"room_id", input.RoomID,
		"date", input.Date,
		"recurrence", input.Recurrence.Kind,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_count", len(created)).InfoContext(ctx, "reservation created")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	draft, vErr := parseReservationInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room scheduler.Room
	room, err = s.lookupRoom(ctx, draft.roomID)
	if err != nil {
		return
	}

	vErr = &ValidationError{}
	validateCapacity(room, draft.participants, vErr)
	if err = s.validateMeetingType(ctx, draft.meetingTypeID, vErr); err != nil {
		return
	}

	now := s.now()
	if s.inPast(draft.date, draft.start, now) {
		vErr.add("start_time", "start must not be in the past")
	}

	dates, expandErr := s.recurrence.Expand(draft.date, draft.kind, draft.count)
	switch {
	case expandErr == nil:
	case draft.kind == recurrence.KindNone:
		vErr.add("recurrence", "a single booking has exactly one occurrence")
	default:
		vErr.add("recurrence", fmt.Sprintf("count must be between 1 and %d", s.recurrence.MaxOccurrences()))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	batch := make([]scheduler.Reservation, 0, len(dates))
	for _, date := range dates {
		batch = append(batch, scheduler.Reservation{
			ID:               s.idGenerator(),
			RoomID:           room.ID,
			RequesterID:      principal.UserID,
			RequesterName:    principal.name(),
			Date:             date,
			Start:            draft.start,
			End:              draft.end,
			MeetingTypeID:    cloneString(draft.meetingTypeID),
			ParticipantCount: draft.participants,
			Notes:            draft.notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	keys := make([]string, 0, len(dates))
	for _, date := range dates {
		keys = append(keys, RoomDayKey(room.ID, date))
	}
	var unlock func()
	unlock, err = s.lock(ctx, keys)
	if err != nil {
		return
	}
	defer unlock()

	candidate := scheduler.Interval{Start: draft.start, End: draft.end}
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx ReservationTx) error {
		var conflicts []DateConflict
		for _, date := range dates {
			existing, err := loadDay(ctx, tx, room.ID, date)
			if err != nil {
				return err
			}
			if hit, ok := scheduler.FindConflict(existing, room.ID, date, candidate, ""); ok {
				conflicts = append(conflicts, DateConflict{Date: date, Reservation: hit})
			}
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}
		if err := tx.InsertBatch(ctx, batch); err != nil {
			return storeError("insert reservations", err)
		}
		return nil
	})
	if err != nil {
		err = s.transactionError(err)
		return
	}

	created = batch
	s.metrics.ReservationsCreated(len(created))

	events := make([]ReservationEvent, 0, len(created))
	for _, r := range created {
		events = append(events, ReservationEvent{
			Type:        EventReservationCreated,
			Reservation: r,
			ActorID:     principal.UserID,
			OccurredAt:  now,
		})
	}
	s.publish(ctx, logger, events...)
	return
}

// UpdateReservation merges patch into an active reservation, re-checks
// conflicts while ignoring the reservation itself, and appends one history
// entry per changed field. A patch that changes nothing writes nothing.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (updated scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "UpdateReservation",
		"principal_id", principal.UserID,
		"reservation_id", params.ReservationID,
	)
	var changes []scheduler.ChangeEntry
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("change_count", len(changes)).InfoContext(ctx, "reservation updated")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	patch, vErr := parsePatch(params.Patch)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var existing scheduler.Reservation
	existing, err = s.store.GetReservation(ctx, params.ReservationID)
	if err != nil {
		err = storeError("load reservation", err)
		return
	}
	if !canModify(principal, existing) {
		err = ErrUnauthorized
		return
	}
	if existing.Canceled {
		err = validationFailure("reservation_id", "canceled reservations cannot be edited")
		return
	}

	merged := patch.apply(existing)

	// Catalog references are only re-checked for the fields the patch sets,
	// so a room or meeting type retired after booking does not block other edits.
	vErr = &ValidationError{}
	if patch.roomID != nil || patch.participants != nil {
		var room scheduler.Room
		room, err = s.lookupRoom(ctx, merged.RoomID)
		if err != nil {
			return
		}
		validateCapacity(room, merged.ParticipantCount, vErr)
	}
	if !merged.Interval().Valid() {
		vErr.add("end_time", "start must be before end")
	}
	if err = s.validateMeetingType(ctx, patch.meetingTypeID, vErr); err != nil {
		return
	}
	now := s.now()
	if (merged.Date != existing.Date || merged.Start != existing.Start) && s.inPast(merged.Date, merged.Start, now) {
		vErr.add("start_time", "start must not be in the past")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if len(scheduler.Diff(existing, merged, principal.UserID, now)) == 0 {
		updated = existing
		return
	}

	var unlock func()
	unlock, err = s.lock(ctx, []string{
		RoomDayKey(existing.RoomID, existing.Date),
		RoomDayKey(merged.RoomID, merged.Date),
	})
	if err != nil {
		return
	}
	defer unlock()

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx ReservationTx) error {
		current, err := tx.GetReservation(ctx, existing.ID)
		if err != nil {
			return storeError("reload reservation", err)
		}
		if err := ensureUnchanged(existing, current); err != nil {
			return err
		}

		day, err := loadDay(ctx, tx, merged.RoomID, merged.Date)
		if err != nil {
			return err
		}
		if hit, ok := scheduler.FindConflict(day, merged.RoomID, merged.Date, merged.Interval(), existing.ID); ok {
			return &ConflictError{Conflicts: []DateConflict{{Date: merged.Date, Reservation: hit}}}
		}

		changes = scheduler.Diff(current, merged, principal.UserID, now)
		fields := fieldsFrom(merged)
		fields.AppendHistory = changes
		fields.UpdatedAt = now
		stored, err := tx.UpdateFields(ctx, existing.ID, fields)
		if err != nil {
			return storeError("update reservation", err)
		}
		updated = stored
		return nil
	})
	if err != nil {
		changes = nil
		err = s.transactionError(err)
		return
	}

	s.metrics.ReservationUpdated()
	s.publish(ctx, logger, ReservationEvent{
		Type:        EventReservationUpdated,
		Reservation: updated,
		Changes:     changes,
		ActorID:     principal.UserID,
		OccurredAt:  now,
	})
	return
}

// CancelReservation flips an active reservation to the terminal canceled state.
// The reservation stays listed and its history gains a canceled entry.
func (s *ReservationService) CancelReservation(ctx context.Context, params CancelReservationParams) (canceled scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "CancelReservation",
		"principal_id", principal.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation canceled")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	reason := strings.TrimSpace(params.Reason)
	if utf8.RuneCountInString(reason) > maxNotesLength {
		err = validationFailure("reason", fmt.Sprintf("must be at most %d characters", maxNotesLength))
		return
	}

	var existing scheduler.Reservation
	existing, err = s.store.GetReservation(ctx, params.ReservationID)
	if err != nil {
		err = storeError("load reservation", err)
		return
	}
	if !canModify(principal, existing) {
		err = ErrUnauthorized
		return
	}
	if existing.Canceled {
		err = validationFailure("reservation_id", "reservation is already canceled")
		return
	}

	var unlock func()
	unlock, err = s.lock(ctx, []string{RoomDayKey(existing.RoomID, existing.Date)})
	if err != nil {
		return
	}
	defer unlock()

	now := s.now()
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx ReservationTx) error {
		current, err := tx.GetReservation(ctx, existing.ID)
		if err != nil {
			return storeError("reload reservation", err)
		}
		if err := ensureUnchanged(existing, current); err != nil {
			return err
		}

		fields := fieldsFrom(current)
		fields.Canceled = true
		fields.CanceledAt = &now
		fields.CancelReason = reason
		fields.UpdatedAt = now
		fields.AppendHistory = []scheduler.ChangeEntry{{
			Timestamp: now,
			Field:     scheduler.FieldCanceled,
			OldValue:  strconv.FormatBool(false),
			NewValue:  strconv.FormatBool(true),
			Actor:     principal.UserID,
		}}
		stored, err := tx.UpdateFields(ctx, existing.ID, fields)
		if err != nil {
			return storeError("cancel reservation", err)
		}
		canceled = stored
		return nil
	})
	if err != nil {
		err = s.transactionError(err)
		return
	}

	s.metrics.ReservationCanceled()
	s.publish(ctx, logger, ReservationEvent{
		Type:        EventReservationCanceled,
		Reservation: canceled,
		ActorID:     principal.UserID,
		OccurredAt:  now,
	})
	return
}

// ListReservations returns matching reservations with active ones first, each
// group ordered by date, start time and id.
func (s *ReservationService) ListReservations(ctx context.Context, params ListReservationsParams) (reservations []scheduler.Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListReservations",
		"room_id", params.RoomID,
		"date", params.Date,
		"include_canceled", params.IncludeCanceled,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(reservations)).DebugContext(ctx, "reservations listed")
	}()

	filter := ReservationFilter{RoomID: strings.TrimSpace(params.RoomID), IncludeCanceled: params.IncludeCanceled}
	if strings.TrimSpace(params.Date) != "" {
		date, parseErr := scheduler.ParseDate(params.Date)
		if parseErr != nil {
			err = validationFailure("date", "must be YYYY-MM-DD")
			return
		}
		filter.Date = date
	}

	var raw []scheduler.Reservation
	raw, err = s.store.ListReservations(ctx, filter)
	if err != nil {
		err = storeError("list reservations", err)
		return
	}

	reservations = make([]scheduler.Reservation, len(raw))
	copy(reservations, raw)
	scheduler.SortForListing(reservations)
	return
}

// HasConflict reports the first active reservation overlapping the candidate
// interval, scanning in start time order.
func (s *ReservationService) HasConflict(ctx context.Context, query ConflictQuery) (scheduler.Reservation, bool, error) {
	if s == nil {
		return scheduler.Reservation{}, false, fmt.Errorf("ReservationService is nil")
	}

	vErr := &ValidationError{}
	roomID := requireString(query.RoomID, "room_id", vErr)
	date := parseDateField(query.Date, "date", vErr)
	start := parseTimeField(query.StartTime, "start_time", vErr)
	end := parseTimeField(query.EndTime, "end_time", vErr)
	if !vErr.HasErrors() && start >= end {
		vErr.add("end_time", "start must be before end")
	}
	if vErr.HasErrors() {
		return scheduler.Reservation{}, false, vErr
	}

	if _, err := s.lookupRoom(ctx, roomID); err != nil {
		return scheduler.Reservation{}, false, err
	}
	existing, err := s.loadDay(ctx, roomID, date)
	if err != nil {
		return scheduler.Reservation{}, false, err
	}

	hit, ok := scheduler.FindConflict(existing, roomID, date, scheduler.Interval{Start: start, End: end}, strings.TrimSpace(query.ExcludeID))
	return hit, ok, nil
}

// SuggestSlot proposes a conflict free start and end for a new reservation.
func (s *ReservationService) SuggestSlot(ctx context.Context, query SlotQuery) (scheduler.Interval, error) {
	day, _, err := s.planningDay(ctx, query, false)
	if err != nil {
		return scheduler.Interval{}, err
	}
	slot, err := s.planner.SuggestSlot(day)
	if errors.Is(err, scheduler.ErrNoSlotAvailable) {
		return scheduler.Interval{}, validationFailure("date", "no free slot remains on this date")
	}
	return slot, err
}

// RecomputeEndTime returns the planner's end for a fixed start.
func (s *ReservationService) RecomputeEndTime(ctx context.Context, query SlotQuery) (scheduler.TimeOfDay, error) {
	day, start, err := s.planningDay(ctx, query, true)
	if err != nil {
		return 0, err
	}
	return s.planner.RecomputeEndTime(day, start, strings.TrimSpace(query.ExcludeID)), nil
}

// ListAvailableStartSlots enumerates selectable start times for a room and date.
func (s *ReservationService) ListAvailableStartSlots(ctx context.Context, query SlotQuery) ([]scheduler.TimeOfDay, error) {
	day, _, err := s.planningDay(ctx, query, false)
	if err != nil {
		return nil, err
	}
	return s.planner.AvailableStartSlots(day), nil
}

// ListAvailableEndSlots enumerates selectable end times for a fixed start.
func (s *ReservationService) ListAvailableEndSlots(ctx context.Context, query SlotQuery) ([]scheduler.TimeOfDay, error) {
	day, start, err := s.planningDay(ctx, query, true)
	if err != nil {
		return nil, err
	}
	return s.planner.AvailableEndSlots(day, start, strings.TrimSpace(query.ExcludeID)), nil
}

// ListRooms returns active rooms ordered by name.
func (s *ReservationService) ListRooms(ctx context.Context) ([]scheduler.Room, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if s.rooms == nil {
		return nil, nil
	}
	raw, err := s.rooms.ListActiveRooms(ctx)
	if err != nil {
		return nil, storeError("list rooms", err)
	}
	rooms := make([]scheduler.Room, len(raw))
	copy(rooms, raw)
	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return rooms, nil
}

// ListMeetingTypes returns active meeting types in catalog order.
func (s *ReservationService) ListMeetingTypes(ctx context.Context) ([]scheduler.MeetingType, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if s.meetingTypes == nil {
		return nil, nil
	}
	types, err := s.meetingTypes.ListActiveTypes(ctx)
	if err != nil {
		return nil, storeError("list meeting types", err)
	}
	return types, nil
}

func (s *ReservationService) planningDay(ctx context.Context, query SlotQuery, needStart bool) (scheduler.Day, scheduler.TimeOfDay, error) {
	if s == nil {
		return scheduler.Day{}, 0, fmt.Errorf("ReservationService is nil")
	}

	vErr := &ValidationError{}
	roomID := requireString(query.RoomID, "room_id", vErr)
	date := parseDateField(query.Date, "date", vErr)
	var start scheduler.TimeOfDay
	if needStart {
		start = parseTimeField(query.Start, "start", vErr)
		if start == scheduler.MinutesPerDay {
			vErr.add("start", "24:00 is only valid as an end time")
		}
	}
	if vErr.HasErrors() {
		return scheduler.Day{}, 0, vErr
	}

	if _, err := s.lookupRoom(ctx, roomID); err != nil {
		return scheduler.Day{}, 0, err
	}
	existing, err := s.loadDay(ctx, roomID, date)
	if err != nil {
		return scheduler.Day{}, 0, err
	}

	now := s.now().In(s.location)
	return scheduler.Day{
		Reservations: existing,
		IsToday:      scheduler.DateOf(now) == date,
		Now:          scheduler.TimeOfDayOf(now),
	}, start, nil
}

func (s *ReservationService) loadDay(ctx context.Context, roomID string, date scheduler.Date) ([]scheduler.Reservation, error) {
	if s.store == nil {
		return nil, nil
	}
	existing, err := s.store.ListReservations(ctx, ReservationFilter{RoomID: roomID, Date: date})
	if err != nil {
		return nil, storeError("list reservations", err)
	}
	return existing, nil
}

func loadDay(ctx context.Context, tx ReservationTx, roomID string, date scheduler.Date) ([]scheduler.Reservation, error) {
	if err := tx.LockRoomDay(ctx, roomID, date); err != nil {
		return nil, storeError("lock room day", err)
	}
	existing, err := tx.ListReservations(ctx, ReservationFilter{RoomID: roomID, Date: date})
	if err != nil {
		return nil, storeError("list reservations", err)
	}
	return existing, nil
}

func (s *ReservationService) lookupRoom(ctx context.Context, roomID string) (scheduler.Room, error) {
	if s.rooms == nil {
		return scheduler.Room{}, fmt.Errorf("room catalog not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return scheduler.Room{}, storeError("load room", err)
	}
	if !room.Active {
		return scheduler.Room{}, validationFailure("room_id", "room is not available for booking")
	}
	return room, nil
}

func (s *ReservationService) validateMeetingType(ctx context.Context, id *string, vErr *ValidationError) error {
	if id == nil || s.meetingTypes == nil {
		return nil
	}
	types, err := s.meetingTypes.ListActiveTypes(ctx)
	if err != nil {
		return storeError("list meeting types", err)
	}
	for _, t := range types {
		if t.ID == *id {
			return nil
		}
	}
	vErr.add("meeting_type_id", "unknown or inactive meeting type")
	return nil
}

func (s *ReservationService) inPast(date scheduler.Date, start scheduler.TimeOfDay, now time.Time) bool {
	return date.At(start, s.location).Before(now.In(s.location).Truncate(time.Minute))
}

func (s *ReservationService) lock(ctx context.Context, keys []string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, &PersistenceError{Op: "acquire room lock", Err: err}
	}
	return unlock, nil
}

func (s *ReservationService) transactionError(err error) error {
	err = storeError("commit transaction", err)
	var cErr *ConflictError
	if errors.As(err, &cErr) {
		s.metrics.ReservationConflict()
	}
	return err
}

func (s *ReservationService) publish(ctx context.Context, logger *slog.Logger, events ...ReservationEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.WarnContext(ctx, "failed to publish reservation events", "error", err, "event_count", len(events))
	}
}

// storeError leaves classified errors alone, maps missing records to
// ErrNotFound and wraps everything else in a PersistenceError.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		cErr *ConflictError
		pErr *PersistenceError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &cErr), errors.As(err, &pErr):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrUnauthorized):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func ensureUnchanged(loaded, current scheduler.Reservation) error {
	if current.Canceled {
		return validationFailure("reservation_id", "reservation is already canceled")
	}
	if !current.UpdatedAt.Equal(loaded.UpdatedAt) {
		return validationFailure("reservation_id", "reservation was modified concurrently; reload and retry")
	}
	return nil
}

func canModify(principal Principal, r scheduler.Reservation) bool {
	return principal.IsAdmin || (principal.UserID != "" && principal.UserID == r.RequesterID)
}

func validateCapacity(room scheduler.Room, participants int, vErr *ValidationError) {
	if participants < 1 {
		vErr.add("participant_count", "at least one participant is required")
		return
	}
	if participants > room.Capacity {
		vErr.add("participant_count", fmt.Sprintf("exceeds room capacity of %d", room.Capacity))
	}
}

type reservationDraft struct {
	roomID        string
	date          scheduler.Date
	start         scheduler.TimeOfDay
	end           scheduler.TimeOfDay
	meetingTypeID *string
	participants  int
	notes         string
	kind          recurrence.Kind
	count         int
}

func parseReservationInput(input ReservationInput) (reservationDraft, *ValidationError) {
	vErr := &ValidationError{}
	draft := reservationDraft{
		roomID:        requireString(input.RoomID, "room_id", vErr),
		date:          parseDateField(input.Date, "date", vErr),
		start:         parseTimeField(input.StartTime, "start_time", vErr),
		end:           parseTimeField(input.EndTime, "end_time", vErr),
		meetingTypeID: normalizeOptionalString(input.MeetingTypeID),
		participants:  input.ParticipantCount,
		notes:         strings.TrimSpace(input.Notes),
		count:         input.Recurrence.Count,
	}
	if _, failed := vErr.FieldErrors["start_time"]; !failed {
		if _, failed := vErr.FieldErrors["end_time"]; !failed && draft.start >= draft.end {
			vErr.add("end_time", "start must be before end")
		}
	}
	if draft.start == scheduler.MinutesPerDay {
		vErr.add("start_time", "24:00 is only valid as an end time")
	}
	if draft.participants < 1 {
		vErr.add("participant_count", "at least one participant is required")
	}
	if utf8.RuneCountInString(draft.notes) > maxNotesLength {
		vErr.add("notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}
	kind, err := recurrence.ParseKind(input.Recurrence.Kind)
	if err != nil {
		vErr.add("recurrence", "unsupported recurrence kind")
	}
	draft.kind = kind
	return draft, vErr
}

type parsedPatch struct {
	roomID        *string
	date          *scheduler.Date
	start         *scheduler.TimeOfDay
	end           *scheduler.TimeOfDay
	meetingTypeID *string
	clearType     bool
	participants  *int
	notes         *string
}

func parsePatch(patch ReservationPatch) (parsedPatch, *ValidationError) {
	vErr := &ValidationError{}
	var out parsedPatch
	if patch.RoomID != nil {
		id := requireString(*patch.RoomID, "room_id", vErr)
		out.roomID = &id
	}
	if patch.Date != nil {
		date := parseDateField(*patch.Date, "date", vErr)
		out.date = &date
	}
	if patch.StartTime != nil {
		start := parseTimeField(*patch.StartTime, "start_time", vErr)
		if start == scheduler.MinutesPerDay {
			vErr.add("start_time", "24:00 is only valid as an end time")
		}
		out.start = &start
	}
	if patch.EndTime != nil {
		end := parseTimeField(*patch.EndTime, "end_time", vErr)
		out.end = &end
	}
	if patch.MeetingTypeID != nil {
		out.meetingTypeID = normalizeOptionalString(patch.MeetingTypeID)
		out.clearType = out.meetingTypeID == nil
	}
	if patch.ParticipantCount != nil {
		count := *patch.ParticipantCount
		if count < 1 {
			vErr.add("participant_count", "at least one participant is required")
		}
		out.participants = &count
	}
	if patch.Notes != nil {
		notes := strings.TrimSpace(*patch.Notes)
		if utf8.RuneCountInString(notes) > maxNotesLength {
			vErr.add("notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
		}
		out.notes = &notes
	}
	return out, vErr
}

func (p parsedPatch) apply(r scheduler.Reservation) scheduler.Reservation {
	merged := r.Clone()
	if p.roomID != nil {
		merged.RoomID = *p.roomID
	}
	if p.date != nil {
		merged.Date = *p.date
	}
	if p.start != nil {
		merged.Start = *p.start
	}
	if p.end != nil {
		merged.End = *p.end
	}
	switch {
	case p.clearType:
		merged.MeetingTypeID = nil
	case p.meetingTypeID != nil:
		merged.MeetingTypeID = cloneString(p.meetingTypeID)
	}
	if p.participants != nil {
		merged.ParticipantCount = *p.participants
	}
	if p.notes != nil {
		merged.Notes = *p.notes
	}
	return merged
}

func requireString(value, field string, vErr *ValidationError) string {
	value = strings.TrimSpace(value)
	if value == "" {
		vErr.add(field, "is required")
	}
	return value
}

func parseDateField(value, field string, vErr *ValidationError) scheduler.Date {
	if strings.TrimSpace(value) == "" {
		vErr.add(field, "is required")
		return scheduler.Date{}
	}
	date, err := scheduler.ParseDate(value)
	if err != nil {
		vErr.add(field, "must be YYYY-MM-DD")
	}
	return date
}

func parseTimeField(value, field string, vErr *ValidationError) scheduler.TimeOfDay {
	if strings.TrimSpace(value) == "" {
		vErr.add(field, "is required")
		return 0
	}
	t, err := scheduler.ParseTimeOfDay(value)
	if err != nil {
		vErr.add(field, "must be HH:MM")
	}
	return t
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

type nopRecorder struct{}

func (nopRecorder) ReservationsCreated(int) {}
func (nopRecorder) ReservationConflict()    {}
func (nopRecorder) ReservationUpdated()     {}
func (nopRecorder) ReservationCanceled()    {}
