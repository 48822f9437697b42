package model

// Prediction is the binary classifier output.
type Prediction int

const (
	Negative Prediction = 0
	Positive Prediction = 1
)

// Normalize divides every feature by its divisor. The argument is a copy;
// the caller's vector is never modified.
func Normalize(input FeatureVector) FeatureVector {
	x := input.values()
	d := Divisors.values()
	for i := range x {
		x[i] /= d[i]
	}
	return fromValues(x)
}

// Dot returns the sum of element-wise products of x and w in model order.
func Dot(x FeatureVector, w Weights) float64 {
	xs := x.values()
	ws := FeatureVector(w).values()

	var sum float64
	for i := range xs {
		sum += xs[i] * ws[i]
	}
	return sum
}

// Classify normalizes input and returns Positive when its dot product with w
// is strictly greater than threshold. Equality yields Negative.
func Classify(input FeatureVector, w Weights, threshold float64) Prediction {
	if Dot(Normalize(input), w) > threshold {
		return Positive
	}
	return Negative
}
