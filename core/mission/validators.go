package mission

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fourmis/core"
)

var (
	recurrenceTag  = "recurrence"
	recurrenceText = "recurrence must be one of NONE, DAILY, WEEKLY, MONTHLY"

	statusTag  = "missionstatus"
	statusText = "status must be one of DRAFT, PUBLISHED, ARCHIVED, CANCELLED"

	endBeforeStartTag  = "endafterstart"
	endBeforeStartText = "end date must not precede start date"
)

// InitValidators registers the mission validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(recurrenceTag, func(fl validator.FieldLevel) bool {
		return Recurrence(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, recurrenceTag, recurrenceText)

	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(formStructValidation, Form{})
	core.RegisterCustomTranslation(validate, translator, endBeforeStartTag, endBeforeStartText)
}

// formStructValidation checks that the end date does not precede the start date.
func formStructValidation(sl validator.StructLevel) {
	f := sl.Current().Interface().(Form)
	// both are YYYY-MM-DD, so they compare lexicographically
	if f.EndDate != "" && f.StartDate != "" && f.EndDate < f.StartDate {
		sl.ReportError(f.EndDate, "end_date", "EndDate", endBeforeStartTag, "")
	}
}
