// Package api 在网关之上提供带类型的 REST 调用，并在发送前做表单校验。
package api

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/gateway"
)

// Doer 由 gateway.Gateway 实现
type Doer interface {
	Request(ctx context.Context, method, path string, body any) (*gateway.Response, error)
	Do(ctx context.Context, method, path string, body, out any) error
}

// Sessions 由 session.Store 实现
type Sessions interface {
	Login(ctx context.Context, identity domain.Employee, token string)
	Logout(ctx context.Context)
}

type Client struct {
	gateway    Doer
	sessions   Sessions
	validate   *validator.Validate
	translator ut.Translator
}

func New(gw Doer, sessions Sessions) (*Client, error) {
	validate, trans, err := NewValidator()
	if err != nil {
		return nil, err
	}

	return &Client{
		gateway:    gw,
		sessions:   sessions,
		validate:   validate,
		translator: trans,
	}, nil
}

// NewValidator 创建带英文翻译的校验器，字段名使用 json tag
func NewValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, err
	}
	return validate, trans, nil
}

func (c *Client) check(form any) error {
	if err := c.validate.Struct(form); err != nil {
		return c.validationError(err)
	}
	return nil
}

// checkVar 校验单个值，错误挂在 field 上
func (c *Client) checkVar(field string, value any, tag string) error {
	if err := c.validate.Var(value, tag); err != nil {
		verr := c.validationError(err)
		if ve, ok := verr.(*ValidationError); ok {
			fields := make(map[string]string, len(ve.Fields))
			for _, msg := range ve.Fields {
				fields[field] = field + " " + strings.TrimSpace(msg)
			}
			return &ValidationError{Fields: fields}
		}
		return verr
	}
	return nil
}
