package strategy

import (
	"strconv"
	"time"

	"upbot/internal/market"
)

// 支持的蜡烛周期。分钟周期以数字字符串表示，与交易所接口一致。
const (
	IntervalDays  = market.IntervalDays
	IntervalWeeks = market.IntervalWeeks
)

var minuteIntervals = map[string]int{
	"1": 1, "3": 3, "5": 5, "10": 10, "15": 15, "30": 30, "60": 60, "240": 240,
}

// MinuteInterval 返回分钟周期的分钟数；非分钟周期时 ok 为 false。
func MinuteInterval(interval string) (int, bool) {
	n, ok := minuteIntervals[interval]
	return n, ok
}

// ValidInterval 报告周期取值是否受支持。
func ValidInterval(interval string) bool {
	if _, ok := minuteIntervals[interval]; ok {
		return true
	}
	return interval == IntervalDays || interval == IntervalWeeks
}

// GateAllowed 判定给定的分钟/小时是否落在该周期允许下单的窗口内。
// 纯函数：同样的输入永远给出同样的结果，测试无需伪造时钟。
//
// 多小时周期的锚点随判定基准移动：基准为开盘价时在周期开始处下单，
// 基准为收盘价时在周期收尾处下单。日/周线固定开放早间窗口。
func GateAllowed(minute, hour int, interval, basis string) bool {
	switch interval {
	case "1", "3":
		return true
	case "5", "10", "15", "30":
		iv := minuteIntervals[interval]
		rest := minute % iv
		return rest == 0 || rest == 1 || rest == iv-1
	case "60":
		return minute >= 58 || minute <= 3
	case "240":
		iv := minuteIntervals[interval] / 60
		if basis == market.BasisOpen {
			return minute <= 3 && hour%iv == 0
		}
		return minute >= 57 && hour%iv == iv-1
	case IntervalDays, IntervalWeeks:
		if basis == market.BasisOpen {
			return hour >= 9 && hour <= 10
		}
		return hour >= 8 && hour <= 9
	default:
		return false
	}
}

// GateAllowedAt 是 GateAllowed 的时刻封装。
func GateAllowedAt(at time.Time, interval, basis string) bool {
	at = at.UTC()
	return GateAllowed(at.Minute(), at.Hour(), interval, basis)
}

// IntervalDuration 返回周期对应的时长，用于回测推进与日志。
func IntervalDuration(interval string) time.Duration {
	if n, ok := minuteIntervals[interval]; ok {
		return time.Duration(n) * time.Minute
	}
	switch interval {
	case IntervalDays:
		return 24 * time.Hour
	case IntervalWeeks:
		return 7 * 24 * time.Hour
	}
	if n, err := strconv.Atoi(interval); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return 0
}
