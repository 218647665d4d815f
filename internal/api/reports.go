package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

func (c *Client) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	if err := c.gateway.Do(ctx, http.MethodGet, "/reports/dashboard-stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) DepartmentStats(ctx context.Context) ([]domain.DepartmentStat, error) {
	var stats []domain.DepartmentStat
	if err := c.gateway.Do(ctx, http.MethodGet, "/reports/department-stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) MonthlyTrends(ctx context.Context) ([]domain.MonthlyTrend, error) {
	var trends []domain.MonthlyTrend
	if err := c.gateway.Do(ctx, http.MethodGet, "/reports/monthly-trends", nil, &trends); err != nil {
		return nil, err
	}
	return trends, nil
}

func (c *Client) LeaveTypeDistribution(ctx context.Context) ([]domain.LeaveTypeShare, error) {
	var shares []domain.LeaveTypeShare
	if err := c.gateway.Do(ctx, http.MethodGet, "/reports/leave-type-distribution", nil, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

func (c *Client) RecentActivities(ctx context.Context) ([]domain.RecentActivity, error) {
	var activities []domain.RecentActivity
	if err := c.gateway.Do(ctx, http.MethodGet, "/reports/recent-activities", nil, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// Analytics 并发加载分析页的五组数据，任意一组失败即返回错误
func (c *Client) Analytics(ctx context.Context) (*domain.Analytics, error) {
	var out domain.Analytics
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := c.DashboardStats(ctx)
		if err != nil {
			return err
		}
		out.Stats = *stats
		return nil
	})
	g.Go(func() (err error) {
		out.Departments, err = c.DepartmentStats(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Trends, err = c.MonthlyTrends(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Distribution, err = c.LeaveTypeDistribution(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Activities, err = c.RecentActivities(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportReport 把导出接口返回的记录写成 CSV，表头取第一条记录的字段并排序，返回写入的行数
func (c *Client) ExportReport(ctx context.Context, w io.Writer) (int, error) {
	resp, err := c.gateway.Request(ctx, http.MethodGet, "/reports/export", nil)
	if err != nil {
		return 0, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return 0, fmt.Errorf("decode export: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	headers := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return 0, err
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			record[i] = csvValue(row[h])
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func csvValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
