package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GreaLake/checkIn/internal/domain"
)

const maxBodyBytes = 1 << 20

// 身份由网关/会话服务注入
const (
	headerUserID   = "X-User-Id"
	headerUserName = "X-User-Name"
	headerUserRole = "X-User-Role"
	headerTeamID   = "X-Team-Id"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult 业务失败也返回 200，由 code 区分
func writeResult[T any](w http.ResponseWriter, v T, err error) {
	if err != nil {
		writeJSON(w, http.StatusOK, FailErr(err))
		return
	}
	writeJSON(w, http.StatusOK, Ok(v))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// caller 当前用户；名字可能经过 URL 编码
func caller(r *http.Request) domain.WorkerProfile {
	name := r.Header.Get(headerUserName)
	if n, err := url.QueryUnescape(name); err == nil {
		name = n
	}
	return domain.WorkerProfile{
		WorkerID:    strings.TrimSpace(r.Header.Get(headerUserID)),
		DisplayName: name,
		Role:        domain.ParseRole(r.Header.Get(headerUserRole)),
		TeamID:      r.Header.Get(headerTeamID),
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime 空字符串返回零值
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func parseOptionalInt64(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// only 限定请求方法
func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// pathID 取前缀后的单段路径参数
func pathID(r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || id == r.URL.Path || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
