package reports

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/eightyone/botdock/internal/core/domain"
)

// Trend charts: one attendance chart and one burden chart per region,
// last five weeks, fixed series and colors. PNG output: the messaging
// platform only previews raster image URLs.
const chartWeeks = 5

const (
	chartW = 1000
	chartH = 600
)

type chartSeries struct {
	label string
	color drawing.Color
	pick  func(domain.WeekPoint) int
}

var attendanceSeries = []chartSeries{
	{"當周主日人數", drawing.ColorFromHex("ff0000"), func(p domain.WeekPoint) int { return p.LordsDay }},
	{"小排人數", drawing.ColorFromHex("ffd700"), func(p domain.WeekPoint) int { return p.SmallGroup }},
	{"晨興人數", drawing.ColorFromHex("008000"), func(p domain.WeekPoint) int { return p.MorningRevival }},
}

var burdenSeries = []chartSeries{
	{"禱告人數", drawing.ColorFromHex("00aaff"), func(p domain.WeekPoint) int { return p.Prayer }},
	{"總出訪人數", drawing.ColorFromHex("0044aa"), func(p domain.WeekPoint) int { return p.TotalVisits }},
	{"家受訪人數", drawing.ColorFromHex("66ccff"), func(p domain.WeekPoint) int { return p.HomeVisited }},
}

// GenerateRegionCharts writes the region's chart files under
// <dataDir>/charts and returns the generated filenames. Charts whose
// series are all zero are skipped.
func GenerateRegionCharts(dataDir, region string, points []domain.WeekPoint) ([]string, error) {
	points = lastWeeks(points)
	if len(points) == 0 {
		return nil, nil
	}

	outDir := filepath.Join(dataDir, ChartsDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create charts dir: %w", err)
	}

	var files []string
	charts := []struct {
		suffix string
		title  string
		series []chartSeries
	}{
		{"attendance", region + " - 召會生活人數趨勢 (近五週)", attendanceSeries},
		{"burden", region + " - 負擔領受程度趨勢 (近五週)", burdenSeries},
	}
	for _, c := range charts {
		img, ok, err := renderChart(c.title, points, c.series)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		name := region + "_" + c.suffix + ".png"
		if err := os.WriteFile(filepath.Join(outDir, name), img, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write chart %s: %w", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

// lastWeeks keeps the newest chartWeeks points; input is oldest first.
func lastWeeks(points []domain.WeekPoint) []domain.WeekPoint {
	if len(points) > chartWeeks {
		return points[len(points)-chartWeeks:]
	}
	return points
}

// renderChart draws a line chart as PNG. ok=false when every series is
// zero for every week.
func renderChart(title string, points []domain.WeekPoint, series []chartSeries) ([]byte, bool, error) {
	maxVal := 0
	for _, s := range series {
		for _, p := range points {
			if v := s.pick(p); v > maxVal {
				maxVal = v
			}
		}
	}
	if maxVal == 0 {
		return nil, false, nil
	}

	xs := make([]time.Time, len(points))
	for i, p := range points {
		xs[i] = p.Sunday
	}

	ss := make([]chart.Series, 0, len(series))
	for _, s := range series {
		ys := make([]float64, len(points))
		for i, p := range points {
			ys[i] = float64(s.pick(p))
		}
		ss = append(ss, chart.TimeSeries{
			Name: s.label,
			Style: chart.Style{
				StrokeColor: s.color,
				StrokeWidth: 2,
				DotColor:    s.color,
				DotWidth:    4,
			},
			XValues: xs,
			YValues: ys,
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  chartW,
		Height: chartH,
		Font:   chartFont(),
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006/01/02"),
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxVal) * 1.15},
		},
		Series: ss,
	}
	// A single week has no x extent; pad the axis so rendering still works.
	if len(points) == 1 {
		graph.XAxis.Range = &chart.ContinuousRange{
			Min: float64(points[0].Sunday.AddDate(0, 0, -3).UnixNano()),
			Max: float64(points[0].Sunday.AddDate(0, 0, 3).UnixNano()),
		}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, false, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), true, nil
}

var (
	fontOnce   sync.Once
	fontCached *truetype.Font
)

// chartFont loads a CJK-capable font for chart text. The bot image installs
// fonts-noto-cjk; CHART_FONT overrides the search path. Without a parsable
// font the library default is used and CJK labels degrade.
func chartFont() *truetype.Font {
	fontOnce.Do(func() {
		paths := []string{
			os.Getenv("CHART_FONT"),
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/opentype/noto/NotoSansCJK-TC-Regular.ttc",
			"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
		}
		for _, p := range paths {
			if p == "" {
				continue
			}
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			f, err := truetype.Parse(data)
			if err != nil {
				continue
			}
			fontCached = f
			return
		}
		fontCached, _ = chart.GetDefaultFont()
	})
	return fontCached
}
