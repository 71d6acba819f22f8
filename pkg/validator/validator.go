package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"skillbridge/backend/internal/model"
)

// 自定义校验标签
const (
	attendanceStatusTag = "attendance_status"
	appealDecisionTag   = "appeal_decision"
	overrideDecisionTag = "override_decision"
)

// Register 将业务校验规则注册到 Gin 的绑定引擎
// 需在路由初始化前调用一次
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("binding 引擎不是 validator/v10")
	}
	return RegisterTo(v)
}

// RegisterTo 注册到指定的 validator 实例
func RegisterTo(v *validator.Validate) error {
	// 错误字段名使用 json/form 标签
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	for tag, fn := range map[string]validator.Func{
		attendanceStatusTag: attendanceStatusValidation,
		appealDecisionTag:   appealDecisionValidation,
		overrideDecisionTag: overrideDecisionValidation,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("注册校验规则 %s 失败: %w", tag, err)
		}
	}
	return nil
}

// Describe 将校验错误转换为面向客户端的字段说明
func Describe(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), describeTag(fe)))
	}
	return strings.Join(parts, "; ")
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "max":
		return "超出最大长度 " + fe.Param()
	case "min":
		return "不能小于 " + fe.Param()
	case "oneof":
		return "取值必须为 " + fe.Param() + " 之一"
	case "uuid":
		return "格式应为 UUID"
	case "datetime":
		return "日期格式应为 " + fe.Param()
	case attendanceStatusTag:
		return "考勤状态必须为 PRESENT/ABSENT/LATE/EXCUSED 之一"
	case appealDecisionTag:
		return "审核结论必须为 APPROVE 或 REJECT"
	case overrideDecisionTag:
		return "改判结论必须为 APPROVED 或 REJECTED"
	}
	return "不合法"
}

func normalize(fl validator.FieldLevel) string {
	return strings.ToUpper(strings.TrimSpace(fl.Field().String()))
}

func attendanceStatusValidation(fl validator.FieldLevel) bool {
	return model.AttendanceStatus(normalize(fl)).Valid()
}

func appealDecisionValidation(fl validator.FieldLevel) bool {
	d := model.ReviewDecision(normalize(fl))
	return d == model.DecisionApprove || d == model.DecisionReject
}

func overrideDecisionValidation(fl validator.FieldLevel) bool {
	return model.AppealStatus(normalize(fl)).Decided()
}
