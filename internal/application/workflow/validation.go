package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/garyjia/disbursement/internal/domain/entity"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports json field names and knows the request vocabularies
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return contains(entity.Categories, fl.Field().String())
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return contains(entity.Priorities, fl.Field().String())
	})

	return v
}

func contains(set []string, s string) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

// validateInput runs the struct tags and the cross-field checks the tags cannot express
func validateInput(v *validator.Validate, in SubmitInput) error {
	verr := &domainwf.ValidationError{}

	if err := CollectFieldErrors(verr, v.Struct(in)); err != nil {
		return err
	}

	if in.RequestType == entity.RequestTypeLiquidation {
		if in.ActualAmount != nil && !in.ActualAmount.IsPositive() {
			verr.Add("actualAmount", "must be greater than 0")
		}
	} else if !in.Amount.IsPositive() {
		verr.Add("amount", "must be greater than 0")
	}

	if in.ExpenseStartDate != nil && in.ExpenseEndDate != nil && in.ExpenseEndDate.Before(*in.ExpenseStartDate) {
		verr.Add("expenseEndDate", "must not be before expenseStartDate")
	}
	if in.PlannedExpenseDate != nil && in.ExpectedLiquidationDate != nil &&
		!in.ExpectedLiquidationDate.After(*in.PlannedExpenseDate) {
		verr.Add("expectedLiquidationDate", "must be after plannedExpenseDate")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// CollectFieldErrors adds the field failures of a validator.Struct result to verr.
// Errors other than validation failures are returned.
func CollectFieldErrors(verr *domainwf.ValidationError, err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "category":
		return "must be one of: " + strings.Join(entity.Categories, ", ")
	case "priority":
		return "must be one of: " + strings.Join(entity.Priorities, ", ")
	case "email":
		return "must be a valid email address"
	case "iso4217":
		return "must be an ISO-4217 currency code"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
