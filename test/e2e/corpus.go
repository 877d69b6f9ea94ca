package e2e

import (
	"fmt"
	"strconv"

	"github.com/Larry-Leee/progressVisualisation/internal/models"
)

// ReportHeader is the header shared by the summary and detail tables.
var ReportHeader = []string{"分部工程", "单位", "设计工程量", "开累完成工程量", "本月计划工程量", "本月完成工程量"}

// Projects are the line items every monthly report lists.
var Projects = []string{"路基土方", "路基石方", "桥梁桩基", "隧道开挖", "隧道衬砌", "涵洞", "排水工程"}

// MonthReport is one synthetic monthly progress report.
type MonthReport struct {
	Period   models.Period
	FileName string
	Tables   []models.Table
	// Rows in the detail table whose plan or actual cell does not parse.
	Dropped int
}

// Series is a run of monthly reports with the totals they should produce.
type Series struct {
	Reports []MonthReport
	// Expected plan/actual per period, keyed by project.
	PeriodTotals map[models.Period]map[string][2]float64
	// Expected plan/actual summed across every period, keyed by project.
	CumulativeTotals map[string][2]float64
}

// BuildSeries returns months consecutive reports starting January 2024. Each
// report opens with a non-qualifying safety table, then a summary table and a
// detail table that both carry the progress header; the detail table is the
// second qualifying one and holds the line items. Every fourth report has a
// row with a dash in place of the actual quantity, and names cycle through
// the formats in ReportFormats.
func BuildSeries(months int) *Series {
	s := &Series{
		PeriodTotals:     make(map[models.Period]map[string][2]float64),
		CumulativeTotals: make(map[string][2]float64),
	}
	for m := 0; m < months; m++ {
		year, month := 2024+m/12, m%12+1
		period := models.NewPeriod(year, month)
		ext := ReportFormats[m%len(ReportFormats)]
		name := fmt.Sprintf("%d年%d月工程进度月报%s", year, month, ext)

		totals := make(map[string][2]float64)
		var rows [][]string
		var sumPlan, sumActual float64
		dropped := 0
		for p, project := range Projects {
			plan := float64(10*(p+1) + m)
			actual := plan - float64(p%3)
			design := float64(1000 * (p + 1))
			cumulative := actual * float64(m+1)
			actualCell := strconv.FormatFloat(actual, 'f', -1, 64)
			if m%4 == 3 && p == len(Projects)-1 {
				actualCell = "—"
				dropped++
			} else {
				totals[project] = [2]float64{plan, actual}
				sumPlan += plan
				sumActual += actual
			}
			rows = append(rows, []string{
				project, "m³",
				strconv.FormatFloat(design, 'f', -1, 64),
				strconv.FormatFloat(cumulative, 'f', -1, 64),
				strconv.FormatFloat(plan, 'f', -1, 64),
				actualCell,
			})
		}
		summary := models.Table{Header: ReportHeader, Rows: [][]string{{
			"合计", "", "", "",
			strconv.FormatFloat(sumPlan, 'f', -1, 64),
			strconv.FormatFloat(sumActual, 'f', -1, 64),
		}}}
		safety := models.Table{
			Header: []string{"序号", "检查项目", "结果"},
			Rows:   [][]string{{"1", "临边防护", "合格"}, {"2", "用电安全", "整改"}},
		}
		s.Reports = append(s.Reports, MonthReport{
			Period:   period,
			FileName: name,
			Tables:   []models.Table{safety, summary, {Header: ReportHeader, Rows: rows}},
			Dropped:  dropped,
		})
		s.PeriodTotals[period] = totals
		for project, v := range totals {
			c := s.CumulativeTotals[project]
			s.CumulativeTotals[project] = [2]float64{c[0] + v[0], c[1] + v[1]}
		}
	}
	return s
}
