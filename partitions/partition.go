package partitions

import (
	"fmt"
	"math"
)

// Partition is the set of elements owned by one distribution group. In this
// module an element is either a zonal wavenumber (spectral distribution over
// wave sets) or a Gaussian latitude row (grid-point distribution over ranks).
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Element membership
	Elements    []int // Global element indices in this partition, ascending
	NumElements int   // Number of elements owned
	Weight      int   // Sum of element weights (grid points for rows)
}

// PartitionLayout holds the complete decomposition of an element range
type PartitionLayout struct {
	// All partitions
	Partitions []Partition

	// Global sizing information
	MaxElements   int // max(NumElements) across all partitions
	TotalElements int // Sum of all elements across partitions
	NumPartitions int // Total number of partitions

	// Element to partition mapping
	EToP []int // Length TotalElements: element k belongs to partition EToP[k]
}

// Methods for PartitionLayout

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency: every element is owned by
// exactly one partition and the element map agrees with the partitions.
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("have %d partitions, NumPartitions is %d",
			len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.EToP) != pl.TotalElements {
		return fmt.Errorf("EToP length %d != TotalElements %d", len(pl.EToP), pl.TotalElements)
	}

	seen := make([]bool, pl.TotalElements)
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != len(Elements) %d",
				p.ID, p.NumElements, len(p.Elements))
		}
		for _, e := range p.Elements {
			if e < 0 || e >= pl.TotalElements {
				return fmt.Errorf("partition %d: element %d out of range", p.ID, e)
			}
			if seen[e] {
				return fmt.Errorf("element %d owned more than once", e)
			}
			if pl.EToP[e] != p.ID {
				return fmt.Errorf("element %d: EToP says %d, found in partition %d",
					e, pl.EToP[e], p.ID)
			}
			seen[e] = true
		}
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		total += p.NumElements
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions own %d elements, want %d", total, pl.TotalElements)
	}
	if actualMax != pl.MaxElements {
		return fmt.Errorf("computed MaxElements %d != stored MaxElements %d",
			actualMax, pl.MaxElements)
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinWeight:     math.MaxInt32,
		MaxWeight:     0,
	}

	total := 0
	for _, p := range pl.Partitions {
		if p.Weight < stats.MinWeight {
			stats.MinWeight = p.Weight
		}
		if p.Weight > stats.MaxWeight {
			stats.MaxWeight = p.Weight
		}
		total += p.Weight
	}
	if pl.NumPartitions > 0 {
		stats.AvgWeight = float64(total) / float64(pl.NumPartitions)
	}
	if stats.AvgWeight > 0 {
		stats.Imbalance = float64(stats.MaxWeight) / stats.AvgWeight
	}

	return stats
}

// PartitionStats summarizes how evenly weight is spread over partitions
type PartitionStats struct {
	NumPartitions int
	MinWeight     int
	MaxWeight     int
	AvgWeight     float64
	Imbalance     float64 // MaxWeight / AvgWeight
}
