package market

import "sort"

// Spool 是按市场分键的有界滑动窗口，保存最近若干根已装饰蜡烛，
// 供形态识别与规则判定读取。超出容量时淘汰最旧一根（FIFO）。
type Spool struct {
	capacity int
	candles  map[string][]Decorated
}

const defaultSpoolCapacity = 10

// NewSpool 构造指定容量的 Spool，容量非法时使用默认值。
func NewSpool(capacity int) *Spool {
	if capacity <= 0 {
		capacity = defaultSpoolCapacity
	}
	return &Spool{
		capacity: capacity,
		candles:  make(map[string][]Decorated),
	}
}

// Capacity 返回每个市场的窗口容量。
func (s *Spool) Capacity() int { return s.capacity }

// Append 追加一根蜡烛并保持时间升序，必要时淘汰最旧记录。
func (s *Spool) Append(market string, candle Decorated) {
	buf := append(s.candles[market], candle)
	sort.Slice(buf, func(i, j int) bool { return buf[i].Time < buf[j].Time })
	if len(buf) > s.capacity {
		buf = buf[len(buf)-s.capacity:]
	}
	s.candles[market] = buf
}

// Window 返回某市场当前窗口的副本（升序）。
func (s *Spool) Window(market string) []Decorated {
	buf := s.candles[market]
	if len(buf) == 0 {
		return nil
	}
	out := make([]Decorated, len(buf))
	copy(out, buf)
	return out
}

// Full 报告某市场的窗口是否已填满。
func (s *Spool) Full(market string) bool {
	return len(s.candles[market]) >= s.capacity
}

// Markets 返回当前持有窗口的市场列表。
func (s *Spool) Markets() []string {
	out := make([]string, 0, len(s.candles))
	for m := range s.candles {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Reset 清空全部窗口。
func (s *Spool) Reset() {
	s.candles = make(map[string][]Decorated)
}
