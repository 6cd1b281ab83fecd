package model

import "sort"

// Assemble bundles the pipeline outputs into one immutable Model. It
// performs selection and sorting only: years come from the
// department-level observations, names are the sorted distinct values
// of the respective tables.
func Assemble(
	obsDep, obsCom []Observation,
	byDep, byReg, national []GeographyYearRecord,
	snapshot []DepartmentSnapshot,
	quality QualityReport,
) *Model {
	return &Model{
		ObservationsDepartment: obsDep,
		ObservationsCommune:    obsCom,
		ByDepartmentYear:       byDep,
		ByRegionYear:           byReg,
		National:               national,
		LatestYearSnapshot:     snapshot,
		YearsAvailable:         ObservationYears(obsDep),
		RegionNames:            distinctNames(obsCom, func(g Geography) string { return g.RegName }),
		DepartmentNames:        distinctNames(obsDep, func(g Geography) string { return g.DepName }),
		Quality:                quality,
	}
}

// ObservationYears returns the sorted distinct years present in obs.
func ObservationYears(obs []Observation) []int {
	seen := make(map[int]struct{})
	for _, o := range obs {
		seen[o.Year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func distinctNames(obs []Observation, key func(Geography) string) []string {
	seen := make(map[string]struct{})
	for _, o := range obs {
		if name := key(o.Geography); name != "" {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
