package detection

import "math"

// plane is a single-channel float image with precomputed summed-area tables.
// The integrals give O(1) window sum and sum-of-squares queries, which makes
// per-window mean/variance constant-time during the correlation scan.
type plane struct {
	vals       []float64
	integral   []float64
	integralSq []float64
	w, h       int
}

// newPlane wraps a row-major luminance buffer and builds its integral tables.
func newPlane(vals []float64, w, h int) *plane {
	p := &plane{
		vals:       vals,
		integral:   make([]float64, w*h),
		integralSq: make([]float64, w*h),
		w:          w,
		h:          h,
	}
	for y := 0; y < h; y++ {
		var rowSum, rowSumSq float64
		for x := 0; x < w; x++ {
			off := y*w + x
			v := vals[off]
			rowSum += v
			rowSumSq += v * v
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSumSq
			} else {
				p.integral[off] = p.integral[off-w] + rowSum
				p.integralSq[off] = p.integralSq[off-w] + rowSumSq
			}
		}
	}
	return p
}

// windowSums returns the sum and sum-of-squares over the w x h window with
// top-left corner (x, y).
func (p *plane) windowSums(x, y, w, h int) (sum, sumSq float64) {
	x1, y1 := x+w-1, y+h-1
	at := func(tbl []float64, cx, cy int) float64 {
		if cx < 0 || cy < 0 {
			return 0
		}
		return tbl[cy*p.w+cx]
	}
	sum = at(p.integral, x1, y1) - at(p.integral, x-1, y1) -
		at(p.integral, x1, y-1) + at(p.integral, x-1, y-1)
	sumSq = at(p.integralSq, x1, y1) - at(p.integralSq, x-1, y1) -
		at(p.integralSq, x1, y-1) + at(p.integralSq, x-1, y-1)
	return sum, sumSq
}

// templateStats holds a template luminance patch with its summary statistics.
type templateStats struct {
	vals []float64
	w, h int
	mean float64
	std  float64
}

// newTemplateStats computes mean and population standard deviation for a
// template luminance patch.
func newTemplateStats(vals []float64, w, h int) *templateStats {
	n := float64(w * h)
	var sum, sumSq float64
	for _, v := range vals {
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := (sumSq - sum*sum/n) / n
	std := 0.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	return &templateStats{vals: vals, w: w, h: h, mean: mean, std: std}
}

// matchTemplate slides tmpl over search and returns the location and value of
// the global NCC maximum. The score surface is never materialized; only the
// running best is kept.
//
// Windows with (near-)zero variance are skipped: NCC is undefined on flat
// regions and a flat window cannot contain the badge. A flat template
// likewise matches nothing and scores -1 everywhere.
func matchTemplate(search *plane, tmpl *templateStats) (bestX, bestY int, bestScore float64) {
	bestScore = -1
	if tmpl.w > search.w || tmpl.h > search.h || tmpl.std <= 1e-9 {
		return 0, 0, bestScore
	}
	n := float64(tmpl.w * tmpl.h)
	for y := 0; y <= search.h-tmpl.h; y++ {
		for x := 0; x <= search.w-tmpl.w; x++ {
			sum, sumSq := search.windowSums(x, y, tmpl.w, tmpl.h)
			mean := sum / n
			variance := (sumSq - sum*sum/n) / n
			if variance <= 1e-9 {
				continue
			}
			std := math.Sqrt(variance)

			var dot float64
			for ty := 0; ty < tmpl.h; ty++ {
				srow := (y+ty)*search.w + x
				trow := ty * tmpl.w
				for tx := 0; tx < tmpl.w; tx++ {
					dot += search.vals[srow+tx] * tmpl.vals[trow+tx]
				}
			}

			score := (dot - n*mean*tmpl.mean) / (n * std * tmpl.std)
			if score > bestScore {
				bestScore, bestX, bestY = score, x, y
			}
		}
	}
	return bestX, bestY, bestScore
}
