package validator

import (
	"errors"
	"fmt"
	"strings"

	validators "github.com/go-playground/validator/v10"
)

// Validator interface
type Validator interface {
	ValidateStruct(inf interface{}) error
}

type validator struct {
	validator *validators.Validate
}

// New Validator func - registers the chat_role and model_id tags
func New() Validator {
	v := validators.New()
	_ = v.RegisterValidation("chat_role", validateChatRole)
	_ = v.RegisterValidation("model_id", validateModelID)
	return &validator{
		validator: v,
	}
}

// ValidateStruct func
func (v *validator) ValidateStruct(inf interface{}) error {
	return v.validator.Struct(inf)
}

func validateChatRole(fl validators.FieldLevel) bool {
	switch fl.Field().String() {
	case "system", "user", "assistant":
		return true
	}
	return false
}

// model ids are either remote names or "local:<catalog id>"
func validateModelID(fl validators.FieldLevel) bool {
	id := fl.Field().String()
	if strings.TrimSpace(id) != id || id == "" {
		return false
	}
	if rest, ok := strings.CutPrefix(id, "local:"); ok {
		return rest != "" && !strings.ContainsAny(rest, `/\:`)
	}
	return true
}

// Messages func - one readable line per failed field
func Messages(err error) []string {
	var verrs validators.ValidationErrors
	if !errors.As(err, &verrs) {
		if err == nil {
			return nil
		}
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return msgs
}
