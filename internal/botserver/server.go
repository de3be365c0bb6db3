// Package botserver is the attendance bot application: a webhook-driven
// HTTP server that ingests weekly attendance data, keeps per-district
// summaries and serves trend charts.
package botserver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/eightyone/botdock/internal/config"
	"github.com/eightyone/botdock/internal/core/domain"
	"github.com/eightyone/botdock/internal/core/ports"
	"github.com/eightyone/botdock/internal/line"
	"github.com/eightyone/botdock/internal/reports"
)

// TriggerKeyword gates every command: messages without it are ignored so
// the bot stays quiet in group chats.
const TriggerKeyword = "81人數助理"

// replyLimit is the Messaging API cap on messages per reply token.
const replyLimit = 5

// Fetcher pulls the current week's attendance from the upstream backend.
type Fetcher interface {
	FetchCurrentWeek(ctx context.Context, now time.Time) (reports.ChurchWeek, []domain.AttendanceRecord, error)
}

// Replier answers webhook events. Push carries what a single reply token
// cannot: its message cap is replyLimit.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages ...line.Message) error
	Push(ctx context.Context, to string, messages ...line.Message) error
}

type Server struct {
	cfg     config.Bot
	store   ports.ReportStore
	fetcher Fetcher
	replier Replier
	log     zerolog.Logger
	app     *fiber.App
	cron    *cron.Cron
	now     func() time.Time
}

func New(cfg config.Bot, store ports.ReportStore, fetcher Fetcher, replier Replier, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		replier: replier,
		log:     log,
		now:     time.Now,
	}

	app := fiber.New(fiber.Config{
		AppName:               "botserver",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Static("/static/charts", filepath.Join(cfg.DataDir, reports.ChartsDir))
	app.Post("/callback", s.handleCallback)

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen binds the configured address (all interfaces, PORT with the
// 10000 fallback) and serves until shutdown.
func (s *Server) Listen() error {
	s.log.Info().Str("addr", s.cfg.Addr()).Msg("bot server listening")
	return s.app.Listen(s.cfg.Addr())
}

func (s *Server) Shutdown() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return s.app.Shutdown()
}

// StartWeeklyRefresh schedules the Monday-morning data refresh.
func (s *Server) StartWeeklyRefresh() error {
	c := cron.New()
	_, err := c.AddFunc("0 8 * * 1", func() {
		if _, err := s.RefreshData(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("weekly refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule weekly refresh: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// SyncFromFiles imports any attend_*.csv report files under the data dir
// into the store. Lets a redeployed instance pick up mounted history.
func (s *Server) SyncFromFiles(ctx context.Context) error {
	paths, err := reports.ListWeekFiles(s.cfg.DataDir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		sunday, records, err := reports.ReadWeekFile(path)
		if err != nil {
			s.log.Warn().Err(err).Str("file", path).Msg("skipping unreadable report file")
			continue
		}
		if err := s.store.SaveWeek(ctx, sunday, records); err != nil {
			return err
		}
	}
	if len(paths) > 0 {
		s.log.Info().Int("weeks", len(paths)).Msg("imported report files")
	}
	return nil
}

// RefreshData pulls the current week from the upstream backend, stores it
// and rewrites the week's report files.
func (s *Server) RefreshData(ctx context.Context) (reports.ChurchWeek, error) {
	week, records, err := s.fetcher.FetchCurrentWeek(ctx, s.now())
	if err != nil {
		return reports.ChurchWeek{}, fmt.Errorf("upstream fetch failed: %w", err)
	}
	if err := s.store.SaveWeek(ctx, week.Sunday, records); err != nil {
		return reports.ChurchWeek{}, err
	}
	summaries, err := s.store.SummaryForWeek(ctx, week.Sunday)
	if err != nil {
		return reports.ChurchWeek{}, err
	}
	if err := reports.WriteWeekFiles(s.cfg.DataDir, week.Sunday, records, summaries); err != nil {
		return reports.ChurchWeek{}, err
	}
	s.log.Info().Str("week", week.String()).Int("records", len(records)).Msg("attendance data refreshed")
	return week, nil
}

func (s *Server) handleCallback(c *fiber.Ctx) error {
	events, err := line.ParseWebhook(s.cfg.ChannelSecret, c.Body(), c.Get("X-Line-Signature"))
	if errors.Is(err, line.ErrInvalidSignature) {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(err.Error())
	}

	for _, ev := range events {
		if ev.Type != "message" || ev.Message.Type != "text" {
			continue
		}
		if err := s.dispatch(c.Context(), ev); err != nil {
			// Command failures are reported to the chat; anything left
			// here is a reply-delivery problem, which must not make the
			// platform retry the whole webhook.
			s.log.Error().Err(err).Msg("failed to handle message")
		}
	}
	return c.SendString("OK")
}

// dispatch routes one text message. The trigger keyword is stripped before
// matching so the remainder is the bare command.
func (s *Server) dispatch(ctx context.Context, ev line.Event) error {
	msg := strings.TrimSpace(ev.Message.Text)
	if !strings.Contains(msg, TriggerKeyword) {
		return nil
	}
	query := strings.TrimSpace(strings.ReplaceAll(msg, TriggerKeyword, ""))
	s.log.Info().Str("query", query).Msg("command received")

	switch {
	case query == "更新數據":
		return s.handleUpdate(ctx, ev.ReplyToken)
	case query == "生成報表" || query == "報表":
		return s.handleCharts(ctx, ev)
	case query == "測試圖片":
		return s.replier.Reply(ctx, ev.ReplyToken, line.Image(s.chartURL("高中大區_attendance.png")))
	case containsAny(query, "請問", "查詢", "誰", "哪"):
		return s.handleQuery(ctx, ev.ReplyToken)
	default:
		return nil
	}
}

func (s *Server) handleUpdate(ctx context.Context, replyToken string) error {
	week, err := s.RefreshData(ctx)
	if err != nil {
		return s.replier.Reply(ctx, replyToken, line.Text(fmt.Sprintf("❌ 更新失敗: %v", err)))
	}
	return s.replier.Reply(ctx, replyToken,
		line.Text(fmt.Sprintf("✅ 數據更新完成！%s", week)))
}

func (s *Server) handleCharts(ctx context.Context, ev line.Event) error {
	regions := make([]string, 0, len(domain.RegionMapping))
	for region := range domain.RegionMapping {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	var messages []line.Message
	for _, region := range regions {
		points, err := s.store.RecentWeeks(ctx, region, chartWindow)
		if err != nil {
			return s.replier.Reply(ctx, ev.ReplyToken, line.Text(fmt.Sprintf("❌ 產圖失敗: %v", err)))
		}
		files, err := reports.GenerateRegionCharts(s.cfg.DataDir, region, points)
		if err != nil {
			return s.replier.Reply(ctx, ev.ReplyToken, line.Text(fmt.Sprintf("❌ 產圖失敗: %v", err)))
		}
		for _, f := range files {
			messages = append(messages, line.Image(s.chartURL(f)))
		}
	}

	if len(messages) == 0 {
		return s.replier.Reply(ctx, ev.ReplyToken, line.Text("⚠️ 本週尚未有數據，請先更新數據。"))
	}

	// A reply token carries at most replyLimit messages; the overflow is
	// pushed to the same chat.
	head := messages
	var rest []line.Message
	if len(messages) > replyLimit {
		head, rest = messages[:replyLimit], messages[replyLimit:]
	}
	if err := s.replier.Reply(ctx, ev.ReplyToken, head...); err != nil {
		return err
	}
	if len(rest) > 0 {
		to := ev.PushTarget()
		if to == "" {
			s.log.Warn().Int("dropped", len(rest)).Msg("no push target for overflow charts")
			return nil
		}
		return s.replier.Push(ctx, to, rest...)
	}
	return nil
}

const chartWindow = 5

func (s *Server) handleQuery(ctx context.Context, replyToken string) error {
	latest, ok, err := s.store.LatestSunday(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return s.replier.Reply(ctx, replyToken, line.Text("⚠️ 尚無數據，請先更新數據。"))
	}
	summaries, err := s.store.SummaryForWeek(ctx, latest)
	if err != nil {
		return err
	}
	return s.replier.Reply(ctx, replyToken, line.Text(reports.SummaryTable(latest, summaries)))
}

func (s *Server) chartURL(filename string) string {
	return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/static/charts/" + url.PathEscape(filename)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
