package locate

import "fmt"

// ShiftRecord accumulates pocket shift statistics over a feed run. It is a
// plain value aggregate; callers that share one across goroutines must
// serialize access themselves.
type ShiftRecord struct {
	Count int
	SumX  float64
	SumY  float64
	MinX  float64
	MaxX  float64
	MinY  float64
	MaxY  float64
}

// Update folds one observed shift (detected pocket minus taught pocket, in
// pixels) into the record.
func (r *ShiftRecord) Update(dx, dy float64) {
	if r.Count == 0 {
		r.MinX, r.MaxX = dx, dx
		r.MinY, r.MaxY = dy, dy
	} else {
		if dx < r.MinX {
			r.MinX = dx
		}
		if dx > r.MaxX {
			r.MaxX = dx
		}
		if dy < r.MinY {
			r.MinY = dy
		}
		if dy > r.MaxY {
			r.MaxY = dy
		}
	}
	r.SumX += dx
	r.SumY += dy
	r.Count++
}

// Mean reports the average shift, (0,0) when nothing has been recorded.
func (r *ShiftRecord) Mean() (float64, float64) {
	if r.Count == 0 {
		return 0, 0
	}
	return r.SumX / float64(r.Count), r.SumY / float64(r.Count)
}

// Summary renders a one-line operator report.
func (r *ShiftRecord) Summary() string {
	if r.Count == 0 {
		return "no shifts recorded"
	}
	mx, my := r.Mean()
	return fmt.Sprintf("n=%d mean=(%.1f, %.1f) x=[%.1f, %.1f] y=[%.1f, %.1f]",
		r.Count, mx, my, r.MinX, r.MaxX, r.MinY, r.MaxY)
}
