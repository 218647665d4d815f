package utils

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
)

var ErrEndBeforeStart = errors.New("end date must be after start date")

// ValidateLeaveDates 检查日期格式并返回包含首尾两天的请假天数
func ValidateLeaveDates(startDate, endDate string) (int, error) {
	start, err := time.Parse(domain.DateLayout, startDate)
	if err != nil {
		return 0, fmt.Errorf("invalid start date %q", startDate)
	}
	end, err := time.Parse(domain.DateLayout, endDate)
	if err != nil {
		return 0, fmt.Errorf("invalid end date %q", endDate)
	}

	days := int(math.Ceil(end.Sub(start).Hours()/24)) + 1
	if days <= 0 {
		return 0, ErrEndBeforeStart
	}
	return days, nil
}

// LeaveInterval 返回日历事件使用的起止时间，结束时间取最后一天的末尾
func LeaveInterval(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(domain.DateLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(domain.DateLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end.Add(24*time.Hour - time.Second), nil
}
