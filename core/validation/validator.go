// Package validation 封装 go-playground/validator，把字段错误转换为 errs.Error。
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"StudySync/core/errs"

	"github.com/go-playground/validator/v10"
)

// Validator 结构体校验器
type Validator struct {
	validate *validator.Validate
}

// New 创建校验器，字段名取 json tag
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct 校验结构体，失败时返回带字段信息的 ValidationError
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	fields := FormatErrors(err)
	if len(fields) == 0 {
		return errs.Validation(err.Error())
	}
	return errs.ValidationFields(firstMessage(err, fields), fields)
}

// FormatErrors 把 validator 错误转换为 field -> message
func FormatErrors(err error) map[string]string {
	out := make(map[string]string)
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, e := range validationErrs {
		out[e.Field()] = message(e)
	}
	return out
}

func message(e validator.FieldError) string {
	name := strings.ToUpper(e.Field()[:1]) + e.Field()[1:]
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return "Please enter a valid email"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", name, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot be more than %s characters", name, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

// firstMessage 取第一个字段错误作为整体消息
func firstMessage(err error, fields map[string]string) string {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		return fields[validationErrs[0].Field()]
	}
	return "Validation failed"
}
