package analytics

import "math"

// hyp2f1 evaluates the Gauss hypergeometric function 2F1(a, b; c; z) for
// 0 <= z < 1 by its power series.
func hyp2f1(a, b, c, z float64) float64 {
	if z == 0 {
		return 1
	}
	sum, term := 1.0, 1.0
	for n := 0; n < 20000; n++ {
		fn := float64(n)
		term *= (a + fn) * (b + fn) / ((c + fn) * (fn + 1)) * z
		sum += term
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			return sum
		}
		if math.Abs(term) < 1e-14*math.Abs(sum) {
			break
		}
	}
	return sum
}

// logHyp2f1 returns log 2F1, switching to Euler's transformation when the
// direct series overflows.
func logHyp2f1(a, b, c, z float64) float64 {
	v := hyp2f1(a, b, c, z)
	if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
		return math.Log(v)
	}
	alt := hyp2f1(c-a, c-b, c, z)
	return math.Log(alt) + (c-a-b)*math.Log1p(-z)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// logSumExp2 is log(exp(a) + exp(b)) without overflow.
func logSumExp2(a, b float64) float64 {
	m := math.Max(a, b)
	if math.IsInf(m, -1) {
		return m
	}
	return m + math.Log(math.Exp(a-m)+math.Exp(b-m))
}
