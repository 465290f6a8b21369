// Package http provides HTTP handlers and middleware for the room reservation API.
//
// The acting user is taken from the X-Actor-Id, X-Actor-Name and X-Actor-Admin
// headers set by the gateway (see Identity). The router exposes:
//   - GET /reservations?room_id=&date=&include_canceled=: listing, active first.
//   - POST /reservations: creates a reservation or a recurring series. Body is
//     `createReservationRequest`; `recurrence` is {"kind","count"} with kind one of
//     none, weekly, biweekly or monthly.
//   - PUT /reservations/{id}: edits a reservation. Absent fields stay unchanged.
//   - POST /reservations/{id}/cancel: cancels with an optional {"reason"}.
//   - GET /reservations/export: the same listing as an XLSX workbook.
//   - POST /conflicts: reports the first active reservation overlapping a candidate.
//   - GET /rooms/{id}/suggestion, /end-time, /start-slots, /end-slots: planning
//     helpers taking date, start and exclude_id query parameters.
//   - GET /rooms, GET /meeting-types: active catalog entries.
//   - GET /metrics, GET /healthz.
//
// Errors use `errorResponse`: validation 422 with per field Japanese messages,
// conflict 409 listing the conflicting dates, not found 404, forbidden 403 and
// storage failures 503.
package http
