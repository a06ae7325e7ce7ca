package approval

import (
	"errors"
	"fmt"
	"strings"

	"pharmadist-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

var (
	ErrNotAllowed     = errors.New("only admin or manager can approve or reject")
	ErrReasonRequired = errors.New("a rejection reason is required")
	ErrAlreadyDecided = errors.New("document is no longer pending approval")
	ErrUnknownAction  = errors.New("unknown approval action")
	ErrUnknownStatus  = errors.New("unknown approval status")
)

// Transition returns the status a pending document moves to. Approved and
// rejected documents never change again.
func Transition(current models.ApprovalStatus, action Action, role models.UserRole, reason string) (models.ApprovalStatus, error) {
	switch current {
	case models.ApprovalPending:
	case models.ApprovalApproved, models.ApprovalRejected:
		return current, ErrAlreadyDecided
	default:
		return current, fmt.Errorf("%w: %q", ErrUnknownStatus, current)
	}

	if !role.CanApprove() {
		return current, ErrNotAllowed
	}

	switch action {
	case ActionApprove:
		return models.ApprovalApproved, nil
	case ActionReject:
		if strings.TrimSpace(reason) == "" {
			return current, ErrReasonRequired
		}
		return models.ApprovalRejected, nil
	default:
		return current, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// RequirePending guards edits and deletes.
func RequirePending(current models.ApprovalStatus) error {
	if current != models.ApprovalPending {
		return ErrAlreadyDecided
	}
	return nil
}

// HTTPError maps transition errors to fiber errors; other errors yield nil.
func HTTPError(err error) *fiber.Error {
	switch {
	case errors.Is(err, ErrNotAllowed):
		return fiber.NewError(fiber.StatusForbidden, ErrNotAllowed.Error())
	case errors.Is(err, ErrReasonRequired):
		return fiber.NewError(fiber.StatusBadRequest, ErrReasonRequired.Error())
	case errors.Is(err, ErrAlreadyDecided):
		return fiber.NewError(fiber.StatusConflict, ErrAlreadyDecided.Error())
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrUnknownStatus):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// DecisionRequest is the body of approve/reject endpoints.
type DecisionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
