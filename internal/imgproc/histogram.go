package imgproc

import (
	"gocv.io/x/gocv"
)

// Histogram computes the 256-bin intensity histogram of a grayscale Mat.
func Histogram(gray gocv.Mat) [256]int {
	var hist [256]int
	if gray.Empty() {
		return hist
	}

	histMat := gocv.NewMat()
	defer histMat.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.CalcHist([]gocv.Mat{gray}, []int{0}, mask, &histMat, []int{256}, []float64{0, 256}, false)
	for i := 0; i < 256; i++ {
		hist[i] = int(histMat.GetFloatAt(i, 0))
	}
	return hist
}

// PercentileLevel returns the intensity below which the given fraction of
// pixels fall. frac is clamped to [0, 1].
func PercentileLevel(hist [256]int, frac float64) int {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return 0
	}
	target := int(float64(total) * frac)
	cum := 0
	for i, n := range hist {
		cum += n
		if cum >= target {
			return i
		}
	}
	return 255
}

// BlackWhiteLevels returns teach-independent black and white reference
// levels: the mean intensity of the darkest and brightest tails of the
// histogram. tailFrac is the tail size (e.g. 0.1 for the darkest/brightest
// 10% of pixels); zero or out-of-range defaults to 0.1.
func BlackWhiteLevels(gray gocv.Mat, tailFrac float64) (black, white float64) {
	if tailFrac <= 0 || tailFrac >= 0.5 {
		tailFrac = 0.1
	}
	hist := Histogram(gray)

	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return 0, 0
	}
	tail := int(float64(total) * tailFrac)
	if tail < 1 {
		tail = 1
	}

	// Darkest tail from the bottom up.
	remaining := tail
	sum, count := 0, 0
	for i := 0; i < 256 && remaining > 0; i++ {
		n := hist[i]
		if n > remaining {
			n = remaining
		}
		sum += i * n
		count += n
		remaining -= n
	}
	if count > 0 {
		black = float64(sum) / float64(count)
	}

	// Brightest tail from the top down.
	remaining = tail
	sum, count = 0, 0
	for i := 255; i >= 0 && remaining > 0; i-- {
		n := hist[i]
		if n > remaining {
			n = remaining
		}
		sum += i * n
		count += n
		remaining -= n
	}
	if count > 0 {
		white = float64(sum) / float64(count)
	}

	return black, white
}

// ThresholdBetween interpolates a threshold between black and white reference
// levels at the given fraction (0 = black, 1 = white).
func ThresholdBetween(black, white float64, frac float64) int {
	return clampLevel(int(black + (white-black)*frac + 0.5))
}
