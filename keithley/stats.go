package keithley

import "math"

// Measurement is a reduced channel reading: sample mean plus the standard
// error of that mean.
type Measurement struct {
	Mean   float64
	StdErr float64
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// populationStdDev divides by n, not n-1.
func populationStdDev(xs []float64) float64 {
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// summarize reduces one channel's readings to mean and standard error. The
// error term is populationStdDev/sqrt(n-1), kept exactly as established
// practice for this instrument's data, even though sampleStdDev/sqrt(n) is
// the textbook estimator.
func summarize(xs []float64) Measurement {
	return Measurement{
		Mean:   mean(xs),
		StdErr: populationStdDev(xs) / math.Sqrt(float64(len(xs)-1)),
	}
}
