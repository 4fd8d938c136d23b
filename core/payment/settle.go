package payment

import "math"

// splitAmount splits a settled amount into the platform commission and the
// vendor's net credit. commission + net == amount always holds; the rounding
// remainder stays with the platform.
func splitAmount(amount int64, rate float64) (commission, net int64) {
	commission = int64(math.Round(float64(amount) * rate))
	if commission > amount {
		commission = amount
	}
	return commission, amount - commission
}
