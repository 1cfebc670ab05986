package enums

import (
	"fmt"
	"strings"
)

// OrderAction names an admin operation on an order.
type OrderAction string

const (
	OrderActionProcess OrderAction = "process"
	OrderActionDeliver OrderAction = "deliver"
	OrderActionRefund  OrderAction = "refund"
	OrderActionCancel  OrderAction = "cancel"
)

var validOrderActions = []OrderAction{
	OrderActionProcess,
	OrderActionDeliver,
	OrderActionRefund,
	OrderActionCancel,
}

func (a OrderAction) String() string {
	return string(a)
}

func (a OrderAction) IsValid() bool {
	for _, candidate := range validOrderActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOrderAction accepts the action name case-insensitively.
func ParseOrderAction(value string) (OrderAction, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderActions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order action %q", value)
}
