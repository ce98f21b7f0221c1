package common

// Sign returns -1, 0 or 1 following the sign of x
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1.0
	case x < 0:
		return -1.0
	default:
		return 0.0
	}
}

// Clamp limits value to [lo, hi]
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// ClampInt limits value to [lo, hi]
func ClampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// CeilDiv returns ceil(a/b) for positive integers
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// NextPowerOfTwo returns the smallest power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
