package kpi

import (
	"sort"

	"kpitracker/internal/domain/scoring"
)

// Summarize computes the dashboard metrics over a filtered set of entries.
func Summarize(entries []Entry) Summary {
	out := Summary{
		ByDepartment:       []DepartmentScore{},
		RatingDistribution: map[string]int{},
	}
	for _, rating := range scoring.Ratings {
		out.RatingDistribution[rating] = 0
	}
	if len(entries) == 0 {
		return out
	}

	type acc struct {
		sum   float64
		count int
	}
	byDept := map[string]*acc{}
	total := 0.0
	out.Max, out.Min = entries[0].TotalScore, entries[0].TotalScore
	for _, e := range entries {
		total += e.TotalScore
		out.Max = max(out.Max, e.TotalScore)
		out.Min = min(out.Min, e.TotalScore)
		out.RatingDistribution[e.Rating]++

		a, ok := byDept[e.Department]
		if !ok {
			a = &acc{}
			byDept[e.Department] = a
		}
		a.sum += e.TotalScore
		a.count++
	}
	out.Count = len(entries)
	out.Mean = scoring.Round2(total / float64(len(entries)))

	for dept, a := range byDept {
		out.ByDepartment = append(out.ByDepartment, DepartmentScore{
			Department: dept,
			Mean:       scoring.Round2(a.sum / float64(a.count)),
			Count:      a.count,
		})
	}
	sort.Slice(out.ByDepartment, func(i, j int) bool {
		if out.ByDepartment[i].Mean != out.ByDepartment[j].Mean {
			return out.ByDepartment[i].Mean > out.ByDepartment[j].Mean
		}
		return out.ByDepartment[i].Department < out.ByDepartment[j].Department
	})
	return out
}
