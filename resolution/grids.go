package resolution

import "fmt"

// RegularGrid returns the row lengths of a full Gaussian grid
func RegularGrid(nlat, nlon int) []int {
	nloen := make([]int, nlat)
	for j := range nloen {
		nloen[j] = nlon
	}
	return nloen
}

// OctahedralGrid returns the row lengths of the octahedral reduced Gaussian
// grid with nlat rows: 20 points on the row nearest each pole, 4 more per row
// towards the equator.
func OctahedralGrid(nlat int) ([]int, error) {
	if nlat < 2 || nlat%2 != 0 {
		return nil, fmt.Errorf("resolution: octahedral grid needs an even row count, got %d", nlat)
	}
	nloen := make([]int, nlat)
	for i := 0; i < nlat/2; i++ {
		nloen[i] = 20 + 4*i
		nloen[nlat-1-i] = nloen[i]
	}
	return nloen, nil
}
