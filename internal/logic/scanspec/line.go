package scanspec

import "fmt"

// Line describes an evenly spaced fly-scan span for one motor: Num mid-steps
// covering [Start, End].
type Line struct {
	Motor string  // axis name
	Start float64 // EGU, leading edge of the span
	End   float64 // EGU, trailing edge of the span
	Num   int     // number of mid-steps, >= 1
}

// Steps holds the discretized data for one axis: per-step lower and upper
// bounds plus the midpoint position sampled by the controller.
type Steps struct {
	Lower    []float64
	Upper    []float64
	Midpoint []float64
}

// Fly evaluates a set of lines sharing one time-per-position into per-axis
// steps and the shared per-step duration array. Every line must request the
// same number of mid-steps so the axes stay time-aligned.
func Fly(lines []Line, timePerPosition float64) (map[string]Steps, []float64, error) {
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("no lines to evaluate")
	}
	if timePerPosition <= 0 {
		return nil, nil, fmt.Errorf("time_per_position must be > 0, got %g", timePerPosition)
	}

	num := lines[0].Num
	axes := make(map[string]Steps, len(lines))
	for _, line := range lines {
		if line.Num < 1 {
			return nil, nil, fmt.Errorf("line %q: num_positions must be >= 1, got %d", line.Motor, line.Num)
		}
		if line.Num != num {
			return nil, nil, fmt.Errorf("line %q: num_positions %d does not match %d", line.Motor, line.Num, num)
		}
		if _, dup := axes[line.Motor]; dup {
			return nil, nil, fmt.Errorf("line %q: duplicate motor", line.Motor)
		}
		axes[line.Motor] = discretize(line)
	}

	durations := make([]float64, num)
	for i := range durations {
		durations[i] = timePerPosition
	}

	return axes, durations, nil
}

// discretize splits a line's span into Num equal steps. Each step i covers
// [start + i*width, start + (i+1)*width]; the midpoint is the step center.
func discretize(line Line) Steps {
	width := (line.End - line.Start) / float64(line.Num)
	s := Steps{
		Lower:    make([]float64, line.Num),
		Upper:    make([]float64, line.Num),
		Midpoint: make([]float64, line.Num),
	}
	for i := 0; i < line.Num; i++ {
		s.Lower[i] = line.Start + float64(i)*width
		s.Upper[i] = line.Start + float64(i+1)*width
		s.Midpoint[i] = (s.Lower[i] + s.Upper[i]) / 2
	}
	return s
}
