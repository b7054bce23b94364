package bitstream

// Coords returns every (x,y) grid coordinate in the traversal order order
// imposes over a width×height grid.
func Coords(width, height int, order ScanOrder) [][2]int {
	coords := make([][2]int, 0, width*height)
	switch order {
	case ColMajor:
		for x := 0; x < width; x++ {
			for y := 0; y < height; y++ {
				coords = append(coords, [2]int{x, y})
			}
		}
	case Snake:
		for y := 0; y < height; y++ {
			if y%2 == 0 {
				for x := 0; x < width; x++ {
					coords = append(coords, [2]int{x, y})
				}
			} else {
				for x := width - 1; x >= 0; x-- {
					coords = append(coords, [2]int{x, y})
				}
			}
		}
	default: // RowMajor
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				coords = append(coords, [2]int{x, y})
			}
		}
	}
	return coords
}
