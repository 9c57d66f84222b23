package calculation

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// DecodeError 는 JSON 경로가 붙은 본문 해석 오류입니다.
type DecodeError struct {
	Field   string
	Message string
	Value   any
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type object map[string]json.RawMessage

// DecodeRequest 는 요청 본문을 Request 로 해석한다.
// 타입이 틀린 값은 "expenses[0].amount" 같은 JSON 경로로 보고한다. 금액은 따옴표 없는 정수만 받는다.
func DecodeRequest(body []byte) (Request, error) {
	var req Request
	if len(bytes.TrimSpace(body)) == 0 {
		return req, &DecodeError{Field: "body", Message: "Request body is required."}
	}
	if !json.Valid(body) {
		return req, &DecodeError{Field: "body", Message: "JSON parse error."}
	}
	root, err := decodeObject(body, "body")
	if err != nil {
		return req, err
	}

	if req.Expenses, err = decodeList(root["expenses"], "expenses", decodeExpense); err != nil {
		return req, err
	}
	if req.Payers, err = decodeList(root["payers"], "payers", decodePayer); err != nil {
		return req, err
	}
	if req.Participants, err = decodeList(root["participants"], "participants", decodeString); err != nil {
		return req, err
	}
	return req, nil
}

func decodeExpense(raw json.RawMessage, path string) (Expense, error) {
	var e Expense
	obj, err := decodeObject(raw, path)
	if err != nil {
		return e, err
	}
	if e.Item, err = decodeString(obj["item"], path+".item"); err != nil {
		return e, err
	}
	if e.Amount, err = decodeAmount(obj["amount"], path+".amount"); err != nil {
		return e, err
	}
	e.Consumers, err = decodeList(obj["consumers"], path+".consumers", decodeString)
	return e, err
}

func decodePayer(raw json.RawMessage, path string) (Payer, error) {
	var p Payer
	obj, err := decodeObject(raw, path)
	if err != nil {
		return p, err
	}
	if p.Name, err = decodeString(obj["name"], path+".name"); err != nil {
		return p, err
	}
	p.Amount, err = decodeAmount(obj["amount"], path+".amount")
	return p, err
}

func decodeObject(raw json.RawMessage, path string) (object, error) {
	var obj object
	if isNull(raw) || json.Unmarshal(raw, &obj) != nil {
		return nil, &DecodeError{Field: path, Message: "Invalid data. Expected a dictionary.", Value: rawValue(raw)}
	}
	return obj, nil
}

// decodeList 는 null 이나 빠진 키를 nil 로 둔다. required 검증이 처리한다.
func decodeList[T any](raw json.RawMessage, path string, item func(json.RawMessage, string) (T, error)) ([]T, error) {
	if isNull(raw) {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, &DecodeError{Field: path, Message: "Expected a list of items.", Value: rawValue(raw)}
	}
	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		v, err := item(elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeString(raw json.RawMessage, path string) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &DecodeError{Field: path, Message: "Not a valid string.", Value: rawValue(raw)}
	}
	return s, nil
}

func decodeAmount(raw json.RawMessage, path string) (*int64, error) {
	if isNull(raw) {
		return nil, nil
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return nil, &DecodeError{Field: path, Message: "A valid integer is required.", Value: rawValue(raw)}
	}
	return &n, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// rawValue 는 오류 상세에 넣을 원래 값이다.
func rawValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
