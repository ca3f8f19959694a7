package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"           // 缺少必填字段等，操作未执行
	KindStateConflict       ErrorKind = "state_conflict"       // 状态冲突，未做任何修改
	KindNotFound            ErrorKind = "not_found"            // 记录不存在
	KindForbidden           ErrorKind = "forbidden"            // 角色不允许（团队视图、审批只对队长开放）
	KindTransport           ErrorKind = "transport"            // 存储/外部服务不可达，可重试
	KindLocationUnavailable ErrorKind = "location_unavailable" // 定位不可用，不阻止签到
	KindDataIntegrity       ErrorKind = "data_integrity"       // 上游数据异常（如签退早于签到）
	KindInternal            ErrorKind = "internal"
)

// Error 业务错误；Code 稳定，可用于前端映射文案
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// 校验错误
	ErrMissingWorker      = newError(KindValidation, "MissingWorker", "worker id is required")
	ErrUnknownType        = newError(KindValidation, "UnknownType", "unknown activity type")
	ErrUnknownSubType     = newError(KindValidation, "UnknownSubType", "unknown travel sub-type")
	ErrMissingSubType     = newError(KindValidation, "MissingSubType", "travel check-in requires a sub-type")
	ErrSubTypeNotAllowed  = newError(KindValidation, "SubTypeNotAllowed", "sub-type is only allowed for travel check-in")
	ErrMissingProject     = newError(KindValidation, "MissingProject", "a project is required for this activity type")
	ErrProjectNotAllowed  = newError(KindValidation, "ProjectNotAllowed", "travel check-in does not take a project")
	ErrUnknownProject     = newError(KindValidation, "UnknownProject", "project does not exist or is inactive")
	ErrDeferNotAllowed    = newError(KindValidation, "DeferNotAllowed", "only construction check-in may defer the project")
	ErrMissingNote        = newError(KindValidation, "MissingNote", "work note is required for approval")
	ErrMissingReason      = newError(KindValidation, "MissingReason", "rejection reason is required")
	ErrUnknownState       = newError(KindValidation, "UnknownState", "unknown approval state")
	ErrInvalidDateRange   = newError(KindValidation, "InvalidDateRange", "date range end is before start")
	ErrCheckoutBeforeOpen = newError(KindValidation, "CheckoutBeforeOpen", "check-out time must be after check-in time")

	// 状态冲突
	ErrAlreadyOpen   = newError(KindStateConflict, "AlreadyOpen", "an entry of this activity type is already open, check out first")
	ErrAlreadyClosed = newError(KindStateConflict, "AlreadyClosed", "entry is already checked out")
	ErrNotPending    = newError(KindStateConflict, "NotPending", "entry is not pending approval")

	// 不存在
	ErrNotFound      = newError(KindNotFound, "NotFound", "entry not found")
	ErrUnknownWorker = newError(KindNotFound, "UnknownWorker", "worker not found")

	// 权限
	ErrNotLead = newError(KindForbidden, "NotLead", "only a team lead may do this")

	// 数据完整性：结束时间早于开始时间
	ErrInvalidInterval = newError(KindDataIntegrity, "InvalidInterval", "interval end is before start")

	// 存储或外部服务不可达
	ErrTransport = newError(KindTransport, "TransportFailure", "store is unavailable, please retry")

	// 定位不可用（只用于描述，不阻止签到）
	ErrLocationUnavailable = newError(KindLocationUnavailable, "LocationUnavailable", "location is unavailable")
)

// Transport 把底层错误包装为可重试的传输错误，同时保留原错误链
func Transport(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindTransport {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// KindOf 返回错误分类；非业务错误返回 KindInternal
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf 返回错误码；非业务错误返回 "Internal"
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "Internal"
}
