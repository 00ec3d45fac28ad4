package partitions

import (
	"fmt"
)

// PartitionBuilder assigns a contiguous range of elements [0, NumElements)
// to NumPartitions partitions
type PartitionBuilder struct {
	NumElements   int
	NumPartitions int

	// Optional per-element cost, used by WeightedBlock and reported in
	// Partition.Weight. A nil slice weights every element as 1.
	Weights []int

	Strategy PartitionStrategy
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	// BlockPartition assigns consecutive, equally sized runs of elements
	BlockPartition PartitionStrategy = iota
	// RoundRobin distributes elements cyclically
	RoundRobin
	// ZigZag distributes elements cyclically, reversing direction every
	// cycle (0,1,..,P-1,P-1,..,0,0,1,..). For zonal wavenumbers, whose cost
	// falls with m, this balances the Legendre work across wave sets.
	ZigZag
	// WeightedBlock assigns consecutive runs of elements so that the sum of
	// Weights is balanced. Used for latitude rows of reduced grids.
	WeightedBlock
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	case ZigZag:
		return "zig-zag"
	case WeightedBlock:
		return "weighted-block"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// BuildPartitions creates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumPartitions < 1 {
		return nil, fmt.Errorf("invalid partition count %d", pb.NumPartitions)
	}
	if pb.NumElements < 0 {
		return nil, fmt.Errorf("invalid element count %d", pb.NumElements)
	}
	if pb.Weights != nil && len(pb.Weights) != pb.NumElements {
		return nil, fmt.Errorf("Weights length %d does not match NumElements=%d",
			len(pb.Weights), pb.NumElements)
	}

	// Partition the elements
	eToP, err := pb.partitionElements()
	if err != nil {
		return nil, err
	}

	// Create partition structures
	partitions := pb.createPartitions(eToP)

	layout := &PartitionLayout{
		Partitions:    partitions,
		MaxElements:   calculateMaxElements(partitions),
		TotalElements: pb.NumElements,
		NumPartitions: pb.NumPartitions,
		EToP:          eToP,
	}

	// Validate the layout
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// weight returns the cost of element i
func (pb *PartitionBuilder) weight(i int) int {
	if pb.Weights == nil {
		return 1
	}
	return pb.Weights[i]
}

// partitionElements assigns elements to partitions
func (pb *PartitionBuilder) partitionElements() ([]int, error) {
	n, np := pb.NumElements, pb.NumPartitions
	eToP := make([]int, n)

	switch pb.Strategy {
	case BlockPartition:
		// Balanced block partitioning, sizes differ by at most one
		for i := 0; i < n; i++ {
			eToP[i] = i * np / n
		}

	case RoundRobin:
		// Distribute elements cyclically
		for i := 0; i < n; i++ {
			eToP[i] = i % np
		}

	case ZigZag:
		for i := 0; i < n; i++ {
			cycle, pos := i/np, i%np
			if cycle%2 == 1 {
				pos = np - 1 - pos
			}
			eToP[i] = pos
		}

	case WeightedBlock:
		total := 0
		for i := 0; i < n; i++ {
			w := pb.weight(i)
			if w < 0 {
				return nil, fmt.Errorf("negative weight %d for element %d", w, i)
			}
			total += w
		}
		if total == 0 {
			// Nothing to balance, fall back to block partitioning
			return pb.partitionWithStrategy(BlockPartition)
		}
		// Each element goes to the partition containing its weight midpoint,
		// which keeps runs contiguous and the assignment monotone.
		cum := 0
		for i := 0; i < n; i++ {
			w := pb.weight(i)
			mid := 2*cum + w
			p := mid * np / (2 * total)
			if p >= np {
				p = np - 1
			}
			eToP[i] = p
			cum += w
		}

	default:
		return nil, fmt.Errorf("unknown partition strategy %v", pb.Strategy)
	}

	return eToP, nil
}

// partitionWithStrategy recursively applies a different strategy
func (pb *PartitionBuilder) partitionWithStrategy(strategy PartitionStrategy) ([]int, error) {
	oldStrategy := pb.Strategy
	pb.Strategy = strategy
	result, err := pb.partitionElements()
	pb.Strategy = oldStrategy
	return result, err
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(eToP []int) []Partition {
	partitions := make([]Partition, pb.NumPartitions)
	for i := range partitions {
		partitions[i] = Partition{
			ID:       i,
			Elements: make([]int, 0),
		}
	}

	// Elements are visited in ascending order so each partition's list is sorted
	for elem, part := range eToP {
		partitions[part].Elements = append(partitions[part].Elements, elem)
		partitions[part].NumElements++
		partitions[part].Weight += pb.weight(elem)
	}

	return partitions
}

// calculateMaxElements finds maximum elements across all partitions
func calculateMaxElements(partitions []Partition) int {
	maxElements := 0
	for _, p := range partitions {
		if p.NumElements > maxElements {
			maxElements = p.NumElements
		}
	}
	return maxElements
}
