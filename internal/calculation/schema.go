package calculation

// ResultSchema 는 Result 의 JSON 스키마를 만든다.
// 스키마 강제 출력을 지원하는 공급자에 그대로 전달된다.
func ResultSchema() map[string]any {
	row := objectSchema(map[string]any{
		"name":    stringSchema(),
		"share":   numberSchema(),
		"paid":    numberSchema(),
		"balance": numberSchema(),
		"status":  enumSchema(StatusCreditor, StatusDebtor, StatusSettled),
	}, "name", "share", "paid", "balance", "status")

	settlement := objectSchema(map[string]any{
		"from":   stringSchema(),
		"to":     stringSchema(),
		"amount": numberSchema(),
	}, "from", "to", "amount")

	return objectSchema(map[string]any{
		"table":       arraySchema(row),
		"settlements": arraySchema(settlement),
		"reasoning":   stringSchema(),
	}, "table", "settlements", "reasoning")
}

func stringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func numberSchema() map[string]any {
	return map[string]any{"type": "number"}
}

func enumSchema(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func arraySchema(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
