// Package analytics derives dashboard statistics from a user's health log.
// Every function is pure: inputs are never modified and empty input yields
// zero values.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"marrowai-server/internal/models"
)

// HighRiskThreshold is the score from which a day counts as high risk.
const HighRiskThreshold = 70

// DefaultTopSymptoms is the length of the symptom frequency table.
const DefaultTopSymptoms = 5

// Period selects a trailing time window.
type Period string

const (
	PeriodMonth       Period = "1month"
	PeriodThreeMonths Period = "3months"
	PeriodSixMonths   Period = "6months"
	PeriodYear        Period = "1year"
	PeriodAll         Period = "all"
)

// DefaultPeriod is used when the caller gives none.
const DefaultPeriod = PeriodThreeMonths

// ParsePeriod validates a period tag. The empty string maps to DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	switch p {
	case "":
		return DefaultPeriod, nil
	case PeriodMonth, PeriodThreeMonths, PeriodSixMonths, PeriodYear, PeriodAll:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Cutoff returns the earliest date kept by p relative to now. For PeriodAll
// ok is false and no cutoff applies.
func (p Period) Cutoff(now time.Time) (cutoff time.Time, ok bool, err error) {
	switch p {
	case PeriodMonth:
		return now.AddDate(0, -1, 0), true, nil
	case PeriodThreeMonths:
		return now.AddDate(0, -3, 0), true, nil
	case PeriodSixMonths:
		return now.AddDate(0, -6, 0), true, nil
	case PeriodYear:
		return now.AddDate(-1, 0, 0), true, nil
	case PeriodAll:
		return time.Time{}, false, nil
	}
	return time.Time{}, false, fmt.Errorf("unknown period %q", string(p))
}

// FilterByPeriod keeps entries dated on or after now minus period.
func FilterByPeriod(entries []models.HealthEntry, period Period, now time.Time) ([]models.HealthEntry, error) {
	cutoff, ok, err := period.Cutoff(now)
	if err != nil {
		return nil, err
	}
	return lo.Filter(entries, func(e models.HealthEntry, _ int) bool {
		return !ok || !e.Date.Before(cutoff)
	}), nil
}

// AverageRiskScore is the mean risk score rounded to the nearest integer,
// or 0 for no entries.
func AverageRiskScore(entries []models.HealthEntry) int {
	if len(entries) == 0 {
		return 0
	}
	sum := lo.SumBy(entries, func(e models.HealthEntry) int { return e.RiskScore })
	return int(math.Round(float64(sum) / float64(len(entries))))
}

// HighRiskDays counts entries scoring at least HighRiskThreshold.
func HighRiskDays(entries []models.HealthEntry) int {
	return lo.CountBy(entries, func(e models.HealthEntry) bool {
		return e.RiskScore >= HighRiskThreshold
	})
}

// Count is one row of a frequency table.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopSymptoms counts, for each symptom tag, the entries that mention it and
// returns the n most frequent. A tag repeated inside one entry counts once.
// Equal counts keep the order in which tags were first encountered.
func TopSymptoms(entries []models.HealthEntry, n int) []Count {
	counts := tally(entries, func(e models.HealthEntry) []string {
		return lo.Uniq([]string(e.Symptoms))
	})
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// ReportTypeDistribution counts entries per non-empty report type, in the
// order types were first seen.
func ReportTypeDistribution(entries []models.HealthEntry) []Count {
	return tally(entries, func(e models.HealthEntry) []string {
		if e.ReportType == "" {
			return nil
		}
		return []string{e.ReportType}
	})
}

func tally(entries []models.HealthEntry, keys func(models.HealthEntry) []string) []Count {
	counts := []Count{}
	index := map[string]int{}
	for _, e := range entries {
		for _, k := range keys(e) {
			i, ok := index[k]
			if !ok {
				i = len(counts)
				index[k] = i
				counts = append(counts, Count{Name: k})
			}
			counts[i].Count++
		}
	}
	return counts
}

// LatestBloodCount returns the blood count of the most recent entry carrying
// one, or nil.
func LatestBloodCount(entries []models.HealthEntry) *models.BloodCount {
	var (
		latest *models.BloodCount
		at     time.Time
	)
	for i := range entries {
		bc := entries[i].Labs()
		if bc == nil {
			continue
		}
		if latest == nil || !entries[i].Date.Before(at) {
			copied := *bc
			latest, at = &copied, entries[i].Date
		}
	}
	return latest
}

// TrendPoint is one point on the risk chart.
type TrendPoint struct {
	Date      time.Time `json:"date"`
	RiskScore int       `json:"riskScore"`
}

// RiskTrend returns the (date, score) series in input order.
func RiskTrend(entries []models.HealthEntry) []TrendPoint {
	return lo.Map(entries, func(e models.HealthEntry, _ int) TrendPoint {
		return TrendPoint{Date: e.Date, RiskScore: e.RiskScore}
	})
}

// Summary is the dashboard payload.
type Summary struct {
	Entries          int                `json:"entries"`
	AverageRiskScore int                `json:"averageRiskScore"`
	HighRiskDays     int                `json:"highRiskDays"`
	TotalReports     int                `json:"totalReports"`
	SymptomCount     int                `json:"symptomCount"`
	LatestBloodCount *models.BloodCount `json:"latestBloodCount"`
	TopSymptoms      []Count            `json:"topSymptoms"`
	ReportTypes      []Count            `json:"reportTypes"`
	Trend            []TrendPoint       `json:"trend"`
}

// Summarize computes every dashboard statistic over entries.
func Summarize(entries []models.HealthEntry) Summary {
	return Summary{
		Entries:          len(entries),
		AverageRiskScore: AverageRiskScore(entries),
		HighRiskDays:     HighRiskDays(entries),
		TotalReports: lo.CountBy(entries, func(e models.HealthEntry) bool {
			return e.ReportType != ""
		}),
		SymptomCount: lo.SumBy(entries, func(e models.HealthEntry) int {
			return len(e.Symptoms)
		}),
		LatestBloodCount: LatestBloodCount(entries),
		TopSymptoms:      TopSymptoms(entries, DefaultTopSymptoms),
		ReportTypes:      ReportTypeDistribution(entries),
		Trend:            RiskTrend(entries),
	}
}
