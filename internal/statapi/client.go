// Package statapi talks to the church statistics backend the attendance
// data comes from: JWT login followed by a per-week member fetch.
package statapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/eightyone/botdock/internal/core/domain"
	"github.com/eightyone/botdock/internal/reports"
)

type Client struct {
	BaseURL  string
	ChurchID int
	Account  string
	Password string
	OrgLevel string

	http *http.Client
}

func NewClient(baseURL string, churchID int, account, password, orgLevel string) *Client {
	return &Client{
		BaseURL:  baseURL,
		ChurchID: churchID,
		Account:  account,
		Password: password,
		OrgLevel: orgLevel,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type loginRequest struct {
	ChurchID int    `json:"church_id"`
	Account  string `json:"account"`
	Pwd      string `json:"pwd"`
}

type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// Login obtains a bearer token for the member endpoint.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, _ := json.Marshal(loginRequest{ChurchID: c.ChurchID, Account: c.Account, Pwd: c.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: %s", resp.Status)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if out.Data.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return out.Data.Token, nil
}

type member struct {
	MemberName string `json:"member_name"`
	Sex        string `json:"sex"`
	Lv3Name    string `json:"lv3_name"`
	Lv4Name    string `json:"lv4_name"`
	Attend0    int    `json:"attend0"` // 主日
	Attend1    int    `json:"attend1"` // 禱告
	Attend2    int    `json:"attend2"` // 家出訪
	Attend3    int    `json:"attend3"` // 家受訪
	Attend4    int    `json:"attend4"` // 小排
	Attend5    int    `json:"attend5"` // 晨興
	Attend6    int    `json:"attend6"` // 福出訪
}

type memberResponse struct {
	Data struct {
		Members []member `json:"members"`
	} `json:"data"`
}

// FetchWeek pulls every member's attendance for one church week. Absent
// categories decode as zero.
func (c *Client) FetchWeek(ctx context.Context, token string, week reports.ChurchWeek) ([]domain.AttendanceRecord, error) {
	q := url.Values{}
	q.Set("level", c.OrgLevel)
	q.Set("meeting", "")
	q.Set("year", strconv.Itoa(week.Year))
	q.Set("week", strconv.Itoa(week.Week))
	q.Set("limit", "5000")
	q.Set("page", "1")
	q.Set("filter_mode", "churchStructureTab")
	q.Set("lastWeekCopy", "0")
	q.Set("timeChange", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/church/member?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("member fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("member fetch failed: %s: %s", resp.Status, body)
	}

	var out memberResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode member response: %w", err)
	}

	records := make([]domain.AttendanceRecord, 0, len(out.Data.Members))
	for _, m := range out.Data.Members {
		records = append(records, domain.AttendanceRecord{
			Name:     m.MemberName,
			Sex:      m.Sex,
			District: m.Lv3Name,
			Group:    m.Lv4Name,
			Tally: domain.Tally{
				LordsDay:       m.Attend0,
				Prayer:         m.Attend1,
				HomeVisit:      m.Attend2,
				HomeVisited:    m.Attend3,
				SmallGroup:     m.Attend4,
				MorningRevival: m.Attend5,
				GospelVisit:    m.Attend6,
			},
		})
	}
	return records, nil
}

// FetchCurrentWeek logs in and pulls the week containing now.
func (c *Client) FetchCurrentWeek(ctx context.Context, now time.Time) (reports.ChurchWeek, []domain.AttendanceRecord, error) {
	token, err := c.Login(ctx)
	if err != nil {
		return reports.ChurchWeek{}, nil, err
	}
	week := reports.WeekOf(now)
	records, err := c.FetchWeek(ctx, token, week)
	if err != nil {
		return reports.ChurchWeek{}, nil, err
	}
	return week, records, nil
}
