package mot

// IoU calculates Intersection over Union between two rectangles.
// Result is always in [0, 1]; rectangles without positive area never overlap anything.
func IoU(r1, r2 Rectangle) float64 {
	if !r1.IsValid() || !r2.IsValid() {
		return 0.0
	}
	xA := maxFloat64(r1.X, r2.X)
	yA := maxFloat64(r1.Y, r2.Y)
	xB := minFloat64(r1.X+r1.Width, r2.X+r2.Width)
	yB := minFloat64(r1.Y+r1.Height, r2.Y+r2.Height)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}

	unionArea := r1.Area() + r2.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	iouVal := interArea / unionArea
	// Guard against float rounding pushing value above 1
	if iouVal > 1.0 {
		return 1.0
	}
	return iouVal
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
