// Package toon 은 프롬프트에 넣을 데이터를 TOON 표기로 직렬화한다.
// 표 형태 데이터는 헤더 한 줄에 열 이름을 두어 JSON 보다 토큰을 적게 쓴다.
package toon

import (
	"fmt"
	"strconv"
	"strings"
)

const rowIndent = "  "

// Document 는 키 순서를 유지하는 TOON 블록이다.
type Document struct {
	lines []string
}

// New 는 빈 Document 를 만든다.
func New() *Document {
	return &Document{}
}

// Value 는 "key: value" 한 줄을 추가한다.
func (d *Document) Value(key string, value any) *Document {
	d.lines = append(d.lines, key+": "+Scalar(value))
	return d
}

// List 는 원시값 목록을 "key[N]: a,b" 형태로 추가한다.
func (d *Document) List(key string, items []string) *Document {
	if len(items) == 0 {
		d.lines = append(d.lines, key+"[0]:")
		return d
	}
	cells := make([]string, len(items))
	for i, item := range items {
		cells[i] = quote(item)
	}
	d.lines = append(d.lines, fmt.Sprintf("%s[%d]: %s", key, len(items), strings.Join(cells, ",")))
	return d
}

// Table 은 같은 열을 갖는 행들을 "key[N]{col,...}:" 헤더와 들여쓴 행으로 추가한다.
// 각 행의 칸 수는 columns 와 같아야 한다.
func (d *Document) Table(key string, columns []string, rows [][]any) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("toon table %s: row %d has %d cells, want %d", key, i, len(row), len(columns))
		}
	}

	d.lines = append(d.lines, fmt.Sprintf("%s[%d]{%s}:", key, len(rows), strings.Join(columns, ",")))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = Scalar(cell)
		}
		d.lines = append(d.lines, rowIndent+strings.Join(cells, ","))
	}
	return nil
}

// String 은 블록 전체를 반환한다.
func (d *Document) String() string {
	return strings.Join(d.lines, "\n")
}

// Scalar 는 원시값 하나를 TOON 표기로 바꾼다. 지원하지 않는 타입은 fmt 기본 표기를 따른다.
func Scalar(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return quote(fmt.Sprint(v))
	}
}

// quote 는 구분자나 따옴표가 들어간 문자열만 큰따옴표로 감싼다.
func quote(value string) string {
	if value == "" || strings.ContainsAny(value, ",:\n\"'") || strings.TrimSpace(value) != value {
		return strconv.Quote(value)
	}
	return value
}
