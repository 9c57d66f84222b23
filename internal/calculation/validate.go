package calculation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	validateErr  error
)

// RegisterValidators 는 요청 검증에 필요한 규칙과 JSON 필드명 매핑을 등록한다.
// gin 의 binding 엔진에도 같은 설정을 적용할 때 사용한다.
func RegisterValidators(v *validator.Validate) error {
	if v == nil {
		return nil
	}
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return fmt.Errorf("register notblank: %w", err)
	}
	return nil
}

// Validate 는 gin 바인딩을 거치지 않는 경로에서 Request 를 검증한다.
func Validate(req *Request) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.SetTagName("binding")
		validateErr = RegisterValidators(validate)
	})
	if validateErr != nil {
		return validateErr
	}
	return validate.Struct(req)
}

// FieldPath 는 검증 오류의 네임스페이스를 JSON 경로로 바꾼다.
// "Request.expenses[0].consumers" -> "expenses[0].consumers"
func FieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

// Describe 는 검증 태그를 사람이 읽을 메시지로 바꾼다.
func Describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "notblank":
		return "This field may not be blank."
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Ensure this list has at least %s item(s).", fe.Param())
		}
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	default:
		return fe.Error()
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
