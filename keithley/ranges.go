package keithley

import "fmt"

// CurrentRange is one of the eight full-scale measurement ranges of the
// 6482, expressed in amps. See 3-2 of the reference manual.
type CurrentRange float64

const (
	Range2nA   CurrentRange = 2e-9
	Range20nA  CurrentRange = 20e-9
	Range200nA CurrentRange = 200e-9
	Range2uA   CurrentRange = 2e-6
	Range20uA  CurrentRange = 20e-6
	Range200uA CurrentRange = 200e-6
	Range2mA   CurrentRange = 2e-3
	Range20mA  CurrentRange = 20e-3
)

type rangeDescriptor struct {
	Resolution string
	MaxReading float64
}

// The instrument reads up to 105% of the selected full scale.
const overrangeFactor = 1.05

var rangeDescriptors = map[CurrentRange]rangeDescriptor{
	Range2nA:   {Resolution: "1 fA", MaxReading: overrangeFactor * float64(Range2nA)},
	Range20nA:  {Resolution: "10 fA", MaxReading: overrangeFactor * float64(Range20nA)},
	Range200nA: {Resolution: "100 fA", MaxReading: overrangeFactor * float64(Range200nA)},
	Range2uA:   {Resolution: "1 pA", MaxReading: overrangeFactor * float64(Range2uA)},
	Range20uA:  {Resolution: "10 pA", MaxReading: overrangeFactor * float64(Range20uA)},
	Range200uA: {Resolution: "100 pA", MaxReading: overrangeFactor * float64(Range200uA)},
	Range2mA:   {Resolution: "1 nA", MaxReading: overrangeFactor * float64(Range2mA)},
	Range20mA:  {Resolution: "10 nA", MaxReading: overrangeFactor * float64(Range20mA)},
}

// Valid reports whether r is one of the eight instrument ranges.
func (r CurrentRange) Valid() bool {
	_, ok := rangeDescriptors[r]
	return ok
}

// Description summarizes the resolution and maximum reading of the range.
func (r CurrentRange) Description() string {
	d, ok := rangeDescriptors[r]
	if !ok {
		return fmt.Sprintf("unknown range %g A", float64(r))
	}
	return fmt.Sprintf("maximal resolution %s and maximum reading %g", d.Resolution, d.MaxReading)
}

func (r CurrentRange) String() string {
	return r.Description()
}
