package tracking

// at builds a 10x10 detection centred on (cx, cy).
func at(id int, label string, cx, cy float64, frame int, ts float64) Detection {
	return Detection{
		TrackID:   id,
		Label:     label,
		X:         cx - 5,
		Y:         cy - 5,
		W:         10,
		H:         10,
		Score:     0.9,
		Frame:     frame,
		Timestamp: ts,
	}
}

func frames(points []Detection) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Frame
	}
	return out
}

func timestamps(points []Detection) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Timestamp
	}
	return out
}
