package audioio

import (
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// errShortOutput is returned when the resampler held back more than the
// flush padding could push out.
var errShortOutput = errors.New("audioio: resampler returned short output")

// flushPadding is the trailing silence appended before resampling a whole
// clip so the filter delay is pushed out.
const flushPadding = 100 // ms

// ResampleHQ converts mono audio between sample rates with a band-limited
// soxr-style resampler. The result has exactly len(samples)*toRate/fromRate
// samples.
func ResampleHQ(samples []int16, fromRate, toRate int) ([]int16, error) {
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audioio: create resampler: %w", err)
	}

	in := make([]float64, len(samples)+fromRate*flushPadding/1000)
	for i, s := range samples {
		in[i] = float64(s) / 32768.0
	}
	res, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("audioio: resample: %w", err)
	}

	want := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	if len(res) < want {
		return nil, errShortOutput
	}
	out := make([]int16, want)
	for i := range out {
		v := math.Round(res[i] * 32768.0)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out, nil
}
