package orders

import (
	"strings"

	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

// TransitionPayload carries optional data attached by an action.
type TransitionPayload struct {
	DeliveryInfo string
}

var transitionTargets = map[enums.OrderAction]enums.OrderStatus{
	enums.OrderActionProcess: enums.OrderStatusProcessing,
	enums.OrderActionDeliver: enums.OrderStatusDelivered,
	enums.OrderActionRefund:  enums.OrderStatusRefunded,
	enums.OrderActionCancel:  enums.OrderStatusCancelled,
}

// allowedFrom lists the statuses each action may start from.
var allowedFrom = map[enums.OrderAction][]enums.OrderStatus{
	enums.OrderActionProcess: {enums.OrderStatusPending},
	enums.OrderActionDeliver: {enums.OrderStatusPending, enums.OrderStatusProcessing},
	enums.OrderActionRefund:  {enums.OrderStatusPending, enums.OrderStatusProcessing},
	enums.OrderActionCancel:  {enums.OrderStatusPending, enums.OrderStatusProcessing},
}

// Transition applies action to order and returns the updated copy. The input
// is never modified. Leaving a terminal status, an unknown action, or an
// action not allowed from the current status is ILLEGAL_TRANSITION; delivering
// without delivery info is VALIDATION_ERROR.
func Transition(order Order, action enums.OrderAction, payload TransitionPayload) (Order, error) {
	target, known := transitionTargets[action]
	if !known {
		return order, illegal(order.Status, action, "unknown action")
	}
	if order.Status.IsTerminal() {
		return order, illegal(order.Status, action, "order is in a terminal status")
	}
	if !canStartFrom(action, order.Status) {
		return order, illegal(order.Status, action, "action not allowed from current status")
	}

	next := order
	if action == enums.OrderActionDeliver {
		info := strings.TrimSpace(payload.DeliveryInfo)
		if info == "" {
			return order, pkgerrors.New(pkgerrors.CodeValidation, "delivery info is required").
				WithDetails(map[string]string{"delivery_info": "must not be empty"})
		}
		next.DeliveryInfo = &info
	}
	next.Status = target
	return next, nil
}

// AllowedActions lists the actions that may be applied from status.
func AllowedActions(status enums.OrderStatus) []enums.OrderAction {
	if status.IsTerminal() {
		return nil
	}
	var out []enums.OrderAction
	for _, action := range []enums.OrderAction{
		enums.OrderActionProcess,
		enums.OrderActionDeliver,
		enums.OrderActionRefund,
		enums.OrderActionCancel,
	} {
		if canStartFrom(action, status) {
			out = append(out, action)
		}
	}
	return out
}

func canStartFrom(action enums.OrderAction, status enums.OrderStatus) bool {
	for _, candidate := range allowedFrom[action] {
		if candidate == status {
			return true
		}
	}
	return false
}

func illegal(from enums.OrderStatus, action enums.OrderAction, reason string) error {
	return pkgerrors.New(pkgerrors.CodeIllegalTransition, reason).
		WithDetails(map[string]string{"from": string(from), "action": string(action)})
}
