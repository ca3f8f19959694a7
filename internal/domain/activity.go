package domain

// ActivityType 打卡类型（封闭集合）
// 同一工人同一类型同时最多一条未签退记录；不同类型互相独立
type ActivityType string

const (
	ActivityConstruction ActivityType = "construction" // 施工打卡
	ActivityTravel       ActivityType = "travel"       // 在途打卡
	ActivityStop         ActivityType = "stop"         // 停工打卡
)

// ActivityTypes 全部打卡类型（固定顺序，统计和状态输出都按此顺序）
var ActivityTypes = []ActivityType{ActivityConstruction, ActivityTravel, ActivityStop}

var activityLabels = map[ActivityType]string{
	ActivityConstruction: "施工打卡",
	ActivityTravel:       "在途打卡",
	ActivityStop:         "停工打卡",
}

var workHoursLabels = map[ActivityType]string{
	ActivityConstruction: "施工工时",
	ActivityTravel:       "在途工时",
	ActivityStop:         "停工工时",
}

var activityColors = map[ActivityType]string{
	ActivityConstruction: "blue",
	ActivityTravel:       "orange",
	ActivityStop:         "red",
}

// ParseActivityType 解析打卡类型，未知类型返回 false
func ParseActivityType(s string) (ActivityType, bool) {
	t := ActivityType(s)
	_, ok := activityLabels[t]
	return t, ok
}

// Valid 是否为已知类型
func (t ActivityType) Valid() bool {
	_, ok := activityLabels[t]
	return ok
}

// Label 显示名称
func (t ActivityType) Label() string {
	if l, ok := activityLabels[t]; ok {
		return l
	}
	return string(t)
}

// WorkHoursLabel 工时统计名称
func (t ActivityType) WorkHoursLabel() string {
	if l, ok := workHoursLabels[t]; ok {
		return l
	}
	return "工时"
}

// Color 显示颜色
func (t ActivityType) Color() string {
	if c, ok := activityColors[t]; ok {
		return c
	}
	return "default"
}

// RequiresProject 施工、停工需要关联项目；在途不关联项目
func (t ActivityType) RequiresProject() bool {
	return t == ActivityConstruction || t == ActivityStop
}

// AllowsDeferredProject 只有施工打卡允许签到时暂不选项目，签退时补选
func (t ActivityType) AllowsDeferredProject() bool {
	return t == ActivityConstruction
}

// RequiresSubType 只有在途打卡有子类型
func (t ActivityType) RequiresSubType() bool {
	return t == ActivityTravel
}

// TravelSubType 在途打卡子类型
type TravelSubType string

const (
	SubTypeDeparture  TravelSubType = "departure"  // 出发
	SubTypeArrival    TravelSubType = "arrival"    // 到达
	SubTypeReturn     TravelSubType = "return"     // 返程
	SubTypeBackToBase TravelSubType = "backToBase" // 返回驻地
)

var subTypeLabels = map[TravelSubType]string{
	SubTypeDeparture:  "出发",
	SubTypeArrival:    "到达",
	SubTypeReturn:     "返程",
	SubTypeBackToBase: "返回驻地",
}

// ParseTravelSubType 解析在途子类型（兼容旧客户端的 "backToNing"）
func ParseTravelSubType(s string) (TravelSubType, bool) {
	if s == "backToNing" {
		return SubTypeBackToBase, true
	}
	st := TravelSubType(s)
	_, ok := subTypeLabels[st]
	return st, ok
}

// Valid 是否为已知子类型
func (st TravelSubType) Valid() bool {
	_, ok := subTypeLabels[st]
	return ok
}

// Label 显示名称
func (st TravelSubType) Label() string {
	if l, ok := subTypeLabels[st]; ok {
		return l
	}
	return string(st)
}

// EntryLabel 记录的类型名称，在途打卡带子类型，如 "在途打卡（出发）"
func EntryLabel(t ActivityType, st TravelSubType) string {
	label := t.Label()
	if t == ActivityTravel && st != "" {
		label += "（" + st.Label() + "）"
	}
	return label
}
