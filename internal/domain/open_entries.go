package domain

// OpenEntries 某工人每种打卡类型当前未签退的记录，每种类型一个槽位
type OpenEntries struct {
	Construction *CheckEntry `json:"construction"`
	Travel       *CheckEntry `json:"travel"`
	Stop         *CheckEntry `json:"stop"`
}

// Get 取某类型槽位
func (o *OpenEntries) Get(t ActivityType) *CheckEntry {
	switch t {
	case ActivityConstruction:
		return o.Construction
	case ActivityTravel:
		return o.Travel
	case ActivityStop:
		return o.Stop
	}
	return nil
}

// Set 设置某类型槽位，未知类型返回 false
func (o *OpenEntries) Set(t ActivityType, e *CheckEntry) bool {
	switch t {
	case ActivityConstruction:
		o.Construction = e
	case ActivityTravel:
		o.Travel = e
	case ActivityStop:
		o.Stop = e
	default:
		return false
	}
	return true
}

// Count 已占用槽位数
func (o *OpenEntries) Count() int {
	n := 0
	for _, t := range ActivityTypes {
		if o.Get(t) != nil {
			n++
		}
	}
	return n
}

// OpenEntriesFrom 由记录列表构造快照；同一类型出现多条时保留最近签到的一条
func OpenEntriesFrom(entries []*CheckEntry) OpenEntries {
	var o OpenEntries
	for _, e := range entries {
		if e == nil || !e.IsOpen() {
			continue
		}
		if cur := o.Get(e.ActivityType); cur != nil && cur.OpenedAt.After(e.OpenedAt) {
			continue
		}
		o.Set(e.ActivityType, e)
	}
	return o
}
