package repository

import (
	"fmt"
	"time"
)

// DayRange 将 YYYY-MM-DD 解析为 loc 时区内该日的毫秒时间戳 [start, end]（闭区间）。
// loc 为 nil 时使用本地时区；应与连续天数使用的时区一致。
func DayRange(date string, loc *time.Location) (startMs int64, endMs int64, err error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("解析日期失败: %w", err)
	}
	start := t.UnixMilli()
	end := t.AddDate(0, 0, 1).UnixMilli() - 1
	return start, end, nil
}
