package domain

import (
	"encoding/json"
	"fmt"
)

// LocationKind 定位结果类别
type LocationKind string

const (
	LocationCoordinates LocationKind = "coordinates" // 高精度定位成功
	LocationDegraded    LocationKind = "degraded"    // 低精度兜底定位成功
	LocationFailure     LocationKind = "failure"     // 定位失败，只保留原因描述
)

// Location 签到位置：坐标或失败原因
// 定位失败不阻止签到，失败原因作为位置描述保存
type Location struct {
	Kind      LocationKind `json:"kind"`
	Latitude  float64      `json:"latitude,omitempty"`
	Longitude float64      `json:"longitude,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Hint      string       `json:"hint,omitempty"`
}

// Coordinates 高精度坐标
func Coordinates(lat, lon float64) Location {
	return Location{Kind: LocationCoordinates, Latitude: lat, Longitude: lon}
}

// DegradedCoordinates 低精度坐标
func DegradedCoordinates(lat, lon float64) Location {
	return Location{Kind: LocationDegraded, Latitude: lat, Longitude: lon}
}

// LocationFailed 定位失败
func LocationFailed(reason, hint string) Location {
	return Location{Kind: LocationFailure, Reason: reason, Hint: hint}
}

// HasCoordinates 是否带坐标（含低精度）
func (l Location) HasCoordinates() bool {
	return l.Kind == LocationCoordinates || l.Kind == LocationDegraded
}

// Degraded 是否为低精度结果
func (l Location) Degraded() bool {
	return l.Kind == LocationDegraded
}

// String 坐标格式 "31.123456, 121.654321"，失败时为原因描述
func (l Location) String() string {
	if l.HasCoordinates() {
		return fmt.Sprintf("%.6f, %.6f", l.Latitude, l.Longitude)
	}
	if l.Reason != "" {
		return l.Reason
	}
	return "位置获取失败"
}

// Status 稳定的状态描述
func (l Location) Status() string {
	switch l.Kind {
	case LocationCoordinates:
		return "已定位"
	case LocationDegraded:
		return "已定位（低精度）"
	default:
		return "定位失败"
	}
}

// MarshalJSON 额外输出 text 字段，方便前端直接展示
func (l Location) MarshalJSON() ([]byte, error) {
	type alias Location
	return json.Marshal(struct {
		alias
		Text string `json:"text"`
	}{alias(l), l.String()})
}
