package extraction

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SizeStats describes the distribution of crop sides.
type SizeStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Stats aggregates a set of extraction points.
type Stats struct {
	TotalPoints   int            `json:"total_points"`
	UniqueWells   []string       `json:"unique_wells"`
	UniqueColors  []string       `json:"unique_colors"`
	PointsPerWell map[string]int `json:"points_per_well"`
	CropSize      SizeStats      `json:"crop_size"`
}

// Statistics summarizes points. The standard deviation is the population
// value.
func (e *Extractor) Statistics(points []ExtractionPoint) Stats {
	st := Stats{
		TotalPoints:   len(points),
		UniqueWells:   []string{},
		UniqueColors:  []string{},
		PointsPerWell: map[string]int{},
	}
	if len(points) == 0 {
		return st
	}

	colors := map[string]struct{}{}
	sizes := make([]float64, len(points))
	for i, p := range points {
		st.PointsPerWell[p.WellPosition]++
		colors[p.Color] = struct{}{}
		sizes[i] = p.Crop.Size
	}

	for w := range st.PointsPerWell {
		st.UniqueWells = append(st.UniqueWells, w)
	}
	for c := range colors {
		st.UniqueColors = append(st.UniqueColors, c)
	}
	sort.Strings(st.UniqueWells)
	sort.Strings(st.UniqueColors)

	if len(sizes) > 1 {
		st.CropSize.Mean, st.CropSize.Std = stat.PopMeanStdDev(sizes, nil)
	} else {
		st.CropSize.Mean = sizes[0]
	}
	st.CropSize.Min = floats.Min(sizes)
	st.CropSize.Max = floats.Max(sizes)
	return st
}
