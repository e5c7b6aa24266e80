package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceFiniteNumber は任意のJSON値を有限の数値に変換します。
// 変換できない値（非数値文字列、空文字列、NaN/Inf、真偽値、オブジェクト、配列、null）はnilを返し、
// リクエスト全体をエラーにはしません。
func CoerceFiniteNumber(v interface{}) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// FormatNumber は数値を最短の10進表記（1.5, 100 など）で返します。nilの場合はfallbackを返します。
func FormatNumber(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// coerceOptionalString はスカラー値を文字列に変換します。null・オブジェクト・配列はnil。
func coerceOptionalString(v interface{}) *string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return nil
	}
	return &s
}

// coerceString はcoerceOptionalStringの結果を、欠損時は空文字列として返します。
func coerceString(v interface{}) string {
	if s := coerceOptionalString(v); s != nil {
		return *s
	}
	return ""
}
