// Package gridpoint holds the caller-owned grid-point output arrays and the
// assembler that packs synthesized fields into them in NPROMA blocks.
package gridpoint

import "fmt"

// NumBlocks is the number of proma-sized blocks needed for npts points
func NumBlocks(npts, proma int) int {
	if proma <= 0 || npts <= 0 {
		return 0
	}
	return (npts + proma - 1) / proma
}

// ValidCount is the number of meaningful entries in block b when npts points
// are packed proma to a block. Only the last block can be partial.
func ValidCount(npts, proma, b int) int {
	n := npts - b*proma
	switch {
	case n <= 0:
		return 0
	case n > proma:
		return proma
	}
	return n
}

// Array3 is a (proma, fields, blocks) array with the first index fastest
type Array3 struct {
	Proma, Fields, Blocks int
	Data                  []float64
}

// NewArray3 allocates a zeroed Array3
func NewArray3(proma, fields, blocks int) *Array3 {
	return &Array3{
		Proma:  proma,
		Fields: fields,
		Blocks: blocks,
		Data:   make([]float64, proma*fields*blocks),
	}
}

func (a *Array3) index(i, f, b int) int {
	return i + a.Proma*(f+a.Fields*b)
}

// At returns entry i of field f in block b
func (a *Array3) At(i, f, b int) float64 { return a.Data[a.index(i, f, b)] }

// Set stores entry i of field f in block b
func (a *Array3) Set(i, f, b int, v float64) { a.Data[a.index(i, f, b)] = v }

// Check verifies the array has the expected shape and backing length
func (a *Array3) Check(proma, fields, blocks int) error {
	if a.Proma != proma || a.Fields != fields || a.Blocks != blocks {
		return fmt.Errorf("have (%d,%d,%d), want (%d,%d,%d)",
			a.Proma, a.Fields, a.Blocks, proma, fields, blocks)
	}
	if len(a.Data) != proma*fields*blocks {
		return fmt.Errorf("data length %d, want %d", len(a.Data), proma*fields*blocks)
	}
	return nil
}

// Array4 is a (proma, levels, fields, blocks) array with the first index
// fastest
type Array4 struct {
	Proma, Levels, Fields, Blocks int
	Data                          []float64
}

// NewArray4 allocates a zeroed Array4
func NewArray4(proma, levels, fields, blocks int) *Array4 {
	return &Array4{
		Proma:  proma,
		Levels: levels,
		Fields: fields,
		Blocks: blocks,
		Data:   make([]float64, proma*levels*fields*blocks),
	}
}

func (a *Array4) index(i, l, f, b int) int {
	return i + a.Proma*(l+a.Levels*(f+a.Fields*b))
}

// At returns entry i of level l of field f in block b
func (a *Array4) At(i, l, f, b int) float64 { return a.Data[a.index(i, l, f, b)] }

// Set stores entry i of level l of field f in block b
func (a *Array4) Set(i, l, f, b int, v float64) { a.Data[a.index(i, l, f, b)] = v }

// Check verifies the array has the expected shape and backing length
func (a *Array4) Check(proma, levels, fields, blocks int) error {
	if a.Proma != proma || a.Levels != levels || a.Fields != fields || a.Blocks != blocks {
		return fmt.Errorf("have (%d,%d,%d,%d), want (%d,%d,%d,%d)",
			a.Proma, a.Levels, a.Fields, a.Blocks, proma, levels, fields, blocks)
	}
	if len(a.Data) != proma*levels*fields*blocks {
		return fmt.Errorf("data length %d, want %d", len(a.Data), proma*levels*fields*blocks)
	}
	return nil
}
