package life

// Step computes the next generation on the CPU using the B3/S23 rule on a
// toroidal grid. It mirrors the embedded compute shader and serves as the
// reference when verifying GPU output.
func Step(s CellState, d GridDimensions) CellState {
	w, h := int(d.Width), int(d.Height)
	next := make(CellState, len(s))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := liveNeighbours(s, w, h, x, y)
			i := y*w + x
			switch {
			case s[i] == 1 && (n == 2 || n == 3):
				next[i] = 1
			case s[i] == 0 && n == 3:
				next[i] = 1
			}
		}
	}
	return next
}

func liveNeighbours(s CellState, w, h, x, y int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := (x + dx + w) % w
			ny := (y + dy + h) % h
			if s[ny*w+nx] != 0 {
				n++
			}
		}
	}
	return n
}
