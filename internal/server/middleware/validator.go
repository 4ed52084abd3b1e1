package middleware

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()

	commonTags := []string{
		"json",
		"param",
		"query",
		"header",
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range commonTags {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return ""
	})

	// a message body carries at most one attachment kind
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		body := sl.Current().Interface().(models.MessageBody)
		if body.MediaCount() > 1 {
			sl.ReportError(body, "body", "Body", "single_media", "")
		}
	}, models.MessageBody{})

	// a note edit is either new text or a delete, never both or neither
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(models.NoteEditRequest)
		if (req.Text == "") == !req.Delete {
			sl.ReportError(req.Text, "text", "Text", "text_or_delete", "")
		}
	}, models.NoteEditRequest{})

	return &Validator{
		validate: validate,
	}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
