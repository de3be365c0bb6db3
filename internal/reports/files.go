package reports

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eightyone/botdock/internal/core/domain"
)

// Report files live in two folders under the data dir, one file per week:
// attend_<sunday>.csv (per-member rows) and summary_<sunday>.csv
// (per-district sums plus the 總計 row).
const (
	AttendDir  = "reports_attend"
	SummaryDir = "reports_summary"
	ChartsDir  = "charts"
)

var attendHeader = append([]string{"姓名", "性別", "區別"}, domain.TallyLabels...)
var summaryHeader = append([]string{"區別"}, domain.TallyLabels...)

// WriteWeekFiles writes (or rewrites) both report files for a week.
func WriteWeekFiles(dataDir string, sunday time.Time, records []domain.AttendanceRecord, summaries []domain.DistrictSummary) error {
	key := sunday.Format("2006-01-02")

	attendRows := [][]string{attendHeader}
	for _, r := range records {
		row := []string{r.Name, r.Sex, r.District}
		for _, v := range r.Values() {
			row = append(row, strconv.Itoa(v))
		}
		attendRows = append(attendRows, row)
	}
	attendPath := filepath.Join(dataDir, AttendDir, "attend_"+key+".csv")
	if err := writeCSV(attendPath, attendRows); err != nil {
		return err
	}

	summaryRows := [][]string{summaryHeader}
	for _, s := range summaries {
		row := []string{s.District}
		for _, v := range s.Values() {
			row = append(row, strconv.Itoa(v))
		}
		summaryRows = append(summaryRows, row)
	}
	summaryPath := filepath.Join(dataDir, SummaryDir, "summary_"+key+".csv")
	return writeCSV(summaryPath, summaryRows)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadWeekFile parses one attend_<sunday>.csv back into records. Missing
// attendance columns read as zero; rows without a name are skipped.
func ReadWeekFile(path string) (time.Time, []domain.AttendanceRecord, error) {
	sunday, ok := ParseWeekEndDate(filepath.Base(path))
	if !ok {
		return time.Time{}, nil, fmt.Errorf("no week date in filename %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) < 1 {
		return time.Time{}, nil, fmt.Errorf("report %s is empty", path)
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["姓名"]; !ok {
		return time.Time{}, nil, fmt.Errorf("report %s is missing the 姓名 column", path)
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(row []string, name string) int {
		n, _ := strconv.Atoi(cell(row, name))
		return n
	}

	var records []domain.AttendanceRecord
	for _, row := range rows[1:] {
		name := cell(row, "姓名")
		if name == "" {
			continue
		}
		records = append(records, domain.AttendanceRecord{
			Name:     name,
			Sex:      cell(row, "性別"),
			District: cell(row, "區別"),
			Tally: domain.Tally{
				LordsDay:       num(row, "主日"),
				Prayer:         num(row, "禱告"),
				HomeVisit:      num(row, "家出訪"),
				HomeVisited:    num(row, "家受訪"),
				SmallGroup:     num(row, "小排"),
				MorningRevival: num(row, "晨興"),
				GospelVisit:    num(row, "福出訪"),
			},
		})
	}
	return sunday, records, nil
}

// ListWeekFiles returns the attend report files under dataDir sorted by
// their embedded week date, oldest first.
func ListWeekFiles(dataDir string) ([]string, error) {
	pattern := filepath.Join(dataDir, AttendDir, "attend_*.csv")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		a, _ := ParseWeekEndDate(filepath.Base(paths[i]))
		b, _ := ParseWeekEndDate(filepath.Base(paths[j]))
		return a.Before(b)
	})
	return paths, nil
}

// SummaryTable renders the per-district summary as an aligned text table
// for chat replies.
func SummaryTable(sunday time.Time, summaries []domain.DistrictSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 本週教會人數統計報表（%s，按區別分組）\n", sunday.Format("2006/01/02"))
	b.WriteString(strings.Repeat("=", 30) + "\n")
	b.WriteString(strings.Join(summaryHeader, " | ") + "\n")
	for _, s := range summaries {
		row := []string{s.District}
		for _, v := range s.Values() {
			row = append(row, strconv.Itoa(v))
		}
		b.WriteString(strings.Join(row, " | ") + "\n")
	}
	return b.String()
}
