package model

// Metric identifies one of the melted vacancy measures.
type Metric string

const (
	MetricTotal    Metric = "total"     // all properties (principal + secondary + vacant)
	MetricVacant   Metric = "vacant"    // vacant properties
	MetricVacant2y Metric = "vacant_2y" // vacant for more than two years
)

// Metrics lists all known metrics in canonical order.
var Metrics = []Metric{MetricTotal, MetricVacant, MetricVacant2y}

// Geography carries the identifying key columns of a source row.
// Department rows fill only DepCode/DepName; commune rows fill all
// eight keys.
type Geography struct {
	DepCode  string `json:"dep_code"`
	DepName  string `json:"dep_name"`
	ComCode  string `json:"com_code,omitempty"`
	ComName  string `json:"com_name,omitempty"`
	RegCode  string `json:"reg_code,omitempty"`
	RegName  string `json:"reg_name,omitempty"`
	EPCICode string `json:"epci_code,omitempty"`
	EPCIName string `json:"epci_name,omitempty"`
}

// Observation is one long-form data point: a single metric value for a
// geography and year. At most one Observation exists per
// (geography, metric, year); insertion order carries no meaning.
type Observation struct {
	Geography Geography `json:"geography"`
	Metric    Metric    `json:"metric"`
	Year      int       `json:"year"`
	Value     Nullable  `json:"value"`
}

// GeographyYearRecord is the wide, derived form: one record per
// geography and year with summed counts and recomputed rates. Counts
// default to zero when the metric is structurally absent; rates are
// missing whenever their denominator is missing or not positive.
type GeographyYearRecord struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Year          int      `json:"year"`
	Total         Nullable `json:"total"`
	Vacant        Nullable `json:"vacant"`
	Vacant2y      Nullable `json:"vacant_2y"`
	VacancyRate   Nullable `json:"vacancy_rate"`
	Vacancy2yRate Nullable `json:"vacancy_2y_rate"`
	LongTermShare Nullable `json:"longterm_share"`
}

// VacancyLevel bands a vacancy rate for presentation consumers.
type VacancyLevel string

const (
	LevelUnknown  VacancyLevel = "Unknown"
	LevelVeryLow  VacancyLevel = "Very Low (<5%)"
	LevelLow      VacancyLevel = "Low (5-7%)"
	LevelModerate VacancyLevel = "Moderate (7-9%)"
	LevelHigh     VacancyLevel = "High (9-12%)"
	LevelVeryHigh VacancyLevel = "Very High (>12%)"
)

// ClassifyVacancyLevel maps a rate to its band. Missing rates classify
// as unknown.
func ClassifyVacancyLevel(rate Nullable) VacancyLevel {
	if !rate.Valid {
		return LevelUnknown
	}
	switch r := rate.Float64; {
	case r < 5:
		return LevelVeryLow
	case r < 7:
		return LevelLow
	case r < 9:
		return LevelModerate
	case r < 12:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// DepartmentSnapshot enriches a department's latest-year record with
// year-over-year movement and the presentation banding.
type DepartmentSnapshot struct {
	GeographyYearRecord
	VacantChange    Nullable     `json:"vacant_change"`
	VacantChangePct Nullable     `json:"vacant_change_pct"`
	Level           VacancyLevel `json:"level"`
}

// TableQuality describes missingness and duplication for one raw table.
// Missing counts are keyed by the original metric column name
// (e.g. "pp_vacant_25").
type TableQuality struct {
	RowCount           int                `json:"row_count"`
	MissingByColumn    map[string]int     `json:"missing_count_by_column"`
	MissingPctByColumn map[string]float64 `json:"missing_percent_by_column"`
	DuplicateRows      int                `json:"duplicate_row_count"`
}

// ConsistencyViolations counts logical inconsistencies found in the
// department-year records. Violations are reported, never corrected:
// suppression artifacts and timing skew legitimately produce rows that
// fail these checks, and dropping them would bias the aggregates.
type ConsistencyViolations struct {
	VacantGTTotal    int `json:"vacant_gt_total"`
	Vacant2yGTVacant int `json:"vacant2y_gt_vacant"`
	NegativeTotal    int `json:"negative_total"`
	NegativeVacant   int `json:"negative_vacant"`
}

// QualityReport is computed once per load and attached to the Model.
type QualityReport struct {
	Department TableQuality          `json:"department"`
	Commune    TableQuality          `json:"commune"`
	Violations ConsistencyViolations `json:"consistency_violations"`
}

// Model is the immutable result bundle of one pipeline run. It is built
// once per raw-table pair and never mutated afterwards; presentation
// code derives its own filtered views.
type Model struct {
	ObservationsDepartment []Observation         `json:"-"`
	ObservationsCommune    []Observation         `json:"-"`
	ByDepartmentYear       []GeographyYearRecord `json:"by_department_year"`
	ByRegionYear           []GeographyYearRecord `json:"by_region_year"`
	National               []GeographyYearRecord `json:"national"`
	LatestYearSnapshot     []DepartmentSnapshot  `json:"latest_year_snapshot"`
	YearsAvailable         []int                 `json:"years_available"`
	RegionNames            []string              `json:"region_names"`
	DepartmentNames        []string              `json:"department_names"`
	Quality                QualityReport         `json:"quality_report"`
}

// LatestYear returns the most recent year in the model, or 0 when no
// observations were present at all.
func (m *Model) LatestYear() int {
	if len(m.YearsAvailable) == 0 {
		return 0
	}
	return m.YearsAvailable[len(m.YearsAvailable)-1]
}
