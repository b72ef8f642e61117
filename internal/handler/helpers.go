package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dinesync/api/internal/lifecycle"
	"github.com/dinesync/api/internal/service"
)

// Error codes carried in the "code" field so polling clients can branch
// without parsing messages.
const (
	codeValidation        = "VALIDATION"
	codeNotFound          = "NOT_FOUND"
	codeConflict          = "CONFLICT"
	codeInvalidTransition = "INVALID_TRANSITION"
	codePrecondition      = "PRECONDITION_FAILED"
	codePartialFailure    = "PARTIAL_FAILURE"
	codeInternal          = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// writeServiceError maps service errors onto the wire taxonomy. A stale
// client acting on old state gets 409 and is expected to re-poll.
func writeServiceError(w http.ResponseWriter, err error) {
	var inv *lifecycle.ErrInvalidTransition
	if errors.As(err, &inv) {
		writeError(w, http.StatusConflict, codeInvalidTransition, inv.Error())
		return
	}
	var partial *service.PartialFailureError
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": partial.Error(),
			"code":  codePartialFailure,
			"paid":  true,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrMenuItemNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())

	case errors.Is(err, service.ErrTableNotOpen),
		errors.Is(err, service.ErrTableClosed),
		errors.Is(err, service.ErrTableNotClosed),
		errors.Is(err, service.ErrTableHasUnpaidOrder),
		errors.Is(err, service.ErrNoOpenOrder),
		errors.Is(err, service.ErrOrderClosed),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrUnfinishedItems),
		errors.Is(err, service.ErrOrderHasServedItems),
		errors.Is(err, service.ErrItemNotPending),
		errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrMenuItemUnavailable):
		writeError(w, http.StatusConflict, codePrecondition, err.Error())

	case errors.Is(err, service.ErrDuplicateTableNumber):
		writeError(w, http.StatusConflict, codeConflict, err.Error())

	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidMenuItemID),
		errors.Is(err, service.ErrNoteTooLong),
		errors.Is(err, service.ErrInvalidStatusValue),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrTableNumberRequired),
		errors.Is(err, service.ErrZoneRequired),
		errors.Is(err, service.ErrInvalidCapacity),
		errors.Is(err, service.ErrWaiterRequired):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())

	default:
		log.Printf("ERROR: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

func parseID(w http.ResponseWriter, raw, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid "+label)
		return uuid.UUID{}, false
	}
	return id, true
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	return val.(string)
}

func textOrNil(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidOrNil(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func timeOrNil(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
