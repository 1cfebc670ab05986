package pricing

const (
	QuantityStep    = 100
	QuantityMin     = 100
	QuantityDefault = 500
)

// Increment moves the stepper up by one step.
func Increment(quantity int) int {
	if quantity < QuantityMin {
		return QuantityMin
	}
	return quantity + QuantityStep
}

// Decrement moves the stepper down by one step, never below QuantityMin.
func Decrement(quantity int) int {
	next := quantity - QuantityStep
	if next < QuantityMin {
		return QuantityMin
	}
	return next
}

// ValidQuantity reports whether quantity is a positive multiple of the step at
// or above the minimum.
func ValidQuantity(quantity int) bool {
	return quantity >= QuantityMin && quantity%QuantityStep == 0
}

// MaxOrderable is the largest valid quantity that stock can cover, or 0 when
// stock is below QuantityMin.
func MaxOrderable(stock int) int {
	capped := stock - stock%QuantityStep
	if capped < QuantityMin {
		return 0
	}
	return capped
}
