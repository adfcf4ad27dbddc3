package ann

import "math"

// sigmoidClamp bounds the pre-activation range where exp is evaluated.
const sigmoidClamp = 45.0

func sigmoid(x float64) float64 {
	if x < -sigmoidClamp {
		return 0
	}
	if x > sigmoidClamp {
		return 1
	}
	return 1.0 / (1.0 + math.Exp(-x))
}

// sigmoidPrime is the derivative expressed through the activation itself.
func sigmoidPrime(o float64) float64 {
	return o * (1.0 - o)
}
