package httpapi

import "github.com/GreaLake/checkIn/internal/domain"

// Result 统一响应结构
// - code: 2000 成功，其余为业务失败
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess     = 2000
	ResultError       = -1
	ResultValidation  = 4000
	ResultForbidden   = 4030
	ResultNotFound    = 4040
	ResultConflict    = 4090
	ResultUnavailable = 5030
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// ErrorDetail 失败时 result 中携带的错误码
type ErrorDetail struct {
	Error string `json:"error"`
}

// FailErr 业务错误转为响应；状态冲突返回 warning，前端可提示后让用户重新操作
func FailErr(err error) Result[any] {
	code := domain.CodeOf(err)
	r := Result[any]{Type: "error", Message: messageFor(err), Result: ErrorDetail{Error: code}}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		r.Code = ResultValidation
	case domain.KindForbidden:
		r.Code = ResultForbidden
	case domain.KindNotFound:
		r.Code = ResultNotFound
	case domain.KindStateConflict:
		r.Code = ResultConflict
		r.Type = "warning"
	case domain.KindTransport, domain.KindLocationUnavailable:
		r.Code = ResultUnavailable
	default:
		r.Code = ResultError
	}
	return r
}

// 错误码 → 提示文案
var errorMessages = map[string]string{
	"MissingWorker":      "未登录或缺少用户信息",
	"UnknownType":        "打卡类型无效",
	"UnknownSubType":     "出差类型无效",
	"MissingSubType":     "请选择出差类型",
	"SubTypeNotAllowed":  "只有出差打卡可以选择出差类型",
	"MissingProject":     "请选择项目",
	"ProjectNotAllowed":  "出差打卡不能选择项目",
	"UnknownProject":     "项目不存在或已停用",
	"DeferNotAllowed":    "只有施工打卡可以在签退时选择项目",
	"MissingNote":        "请填写工作内容",
	"MissingReason":      "请填写驳回原因",
	"UnknownState":       "审批状态无效",
	"InvalidDateRange":   "结束日期不能早于开始日期",
	"CheckoutBeforeOpen": "签退时间必须晚于签到时间",
	"AlreadyOpen":        "该类型已签到，请先签退",
	"AlreadyClosed":      "该记录已签退",
	"NotPending":         "该记录不是待审批状态",
	"NotFound":           "记录不存在",
	"UnknownWorker":      "用户不存在",
	"NotLead":            "只有队长可以进行此操作",
	"InvalidInterval":    "记录时间异常，请联系管理员",
	"TransportFailure":   "服务暂时不可用，请稍后重试",
}

func messageFor(err error) string {
	if m, ok := errorMessages[domain.CodeOf(err)]; ok {
		return m
	}
	return "操作失败，请重试"
}
