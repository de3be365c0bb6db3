package domain

import "time"

// Tally holds the seven weekly attendance categories tracked per member.
// Field order follows the report column order.
type Tally struct {
	LordsDay       int `json:"lords_day"`       // 主日
	Prayer         int `json:"prayer"`          // 禱告
	HomeVisit      int `json:"home_visit"`      // 家出訪
	HomeVisited    int `json:"home_visited"`    // 家受訪
	SmallGroup     int `json:"small_group"`     // 小排
	MorningRevival int `json:"morning_revival"` // 晨興
	GospelVisit    int `json:"gospel_visit"`    // 福出訪
}

// TallyLabels is the report column order for the attendance categories.
var TallyLabels = []string{"主日", "禱告", "家出訪", "家受訪", "小排", "晨興", "福出訪"}

// Values returns the counts in TallyLabels order.
func (t Tally) Values() []int {
	return []int{t.LordsDay, t.Prayer, t.HomeVisit, t.HomeVisited, t.SmallGroup, t.MorningRevival, t.GospelVisit}
}

// Add accumulates another tally into this one.
func (t *Tally) Add(o Tally) {
	t.LordsDay += o.LordsDay
	t.Prayer += o.Prayer
	t.HomeVisit += o.HomeVisit
	t.HomeVisited += o.HomeVisited
	t.SmallGroup += o.SmallGroup
	t.MorningRevival += o.MorningRevival
	t.GospelVisit += o.GospelVisit
}

// Total returns the sum over all categories.
func (t Tally) Total() int {
	s := 0
	for _, v := range t.Values() {
		s += v
	}
	return s
}

// AttendanceRecord is one member's attendance for one church week.
// District comes from the upstream lv3 field, Group from lv4.
type AttendanceRecord struct {
	Name     string `json:"name"`
	Sex      string `json:"sex"`
	District string `json:"district"`
	Group    string `json:"group"`
	Tally
}

// DistrictSummary is the per-district sum for one week. The 總計 row uses
// TotalDistrict as its district name.
type DistrictSummary struct {
	District string `json:"district"`
	Tally
}

// WeekPoint is one week of an aggregated timeseries. TotalVisits is the
// derived 總出訪 column (家出訪 + 福出訪).
type WeekPoint struct {
	Sunday time.Time `json:"sunday"`
	Tally
	TotalVisits int `json:"total_visits"`
}

// TotalDistrict labels the all-districts summary row.
const TotalDistrict = "總計"

// TotalRegion selects every district when building a timeseries.
const TotalRegion = "總計"

// RegionMapping groups districts into the named large regions charts are
// generated for. A chart region may also be TotalRegion or a single district.
var RegionMapping = map[string][]string{
	"高中大區": {"高中一區", "高中二區"},
	"青年大區": {"青年一區", "青年二區", "青年三區"},
	"國中大區": {"國中一區", "國中二區"},
}
