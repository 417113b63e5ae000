// Package validation holds the pure field and request rules of the task tracker.
// Every failure is reported as a *model.ValidationError naming the field.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/dtroode/tasktracker/internal/model"
)

const (
	UsernameMinLen    = 3
	UsernameMaxLen    = 50
	EmailMaxLen       = 254
	PasswordMinLen    = 8
	PasswordMaxLen    = 128
	PasswordMaxBytes  = 72
	TitleMaxLen       = 255
	DescriptionMaxLen = 1000
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Username checks length and the letters/digits/underscore charset.
func Username(username string) error {
	return check("username", username, fmt.Sprintf("required,min=%d,max=%d,username", UsernameMinLen, UsernameMaxLen))
}

// Email checks the address format.
func Email(email string) error {
	return check("email", email, fmt.Sprintf("required,max=%d,email", EmailMaxLen))
}

// Password requires 8-128 characters, at most 72 bytes, with at least one letter and one digit.
func Password(password string) error {
	if err := check("password", password, fmt.Sprintf("required,min=%d,max=%d", PasswordMinLen, PasswordMaxLen)); err != nil {
		return err
	}

	// bcrypt only accepts the first 72 bytes.
	if len(password) > PasswordMaxBytes {
		return model.NewValidationError("password", fmt.Sprintf("must be at most %d bytes long", PasswordMaxBytes))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return model.NewValidationError("password", "must contain at least one letter and one digit")
	}
	return nil
}

// Title trims the title and checks it is 1-255 characters long.
func Title(title string) (string, error) {
	title = strings.TrimSpace(title)
	if err := check("title", title, fmt.Sprintf("required,max=%d", TitleMaxLen)); err != nil {
		return "", err
	}
	return title, nil
}

// Description trims the description and checks it is at most 1000 characters long.
func Description(description string) (string, error) {
	description = strings.TrimSpace(description)
	if err := check("description", description, fmt.Sprintf("max=%d", DescriptionMaxLen)); err != nil {
		return "", err
	}
	return description, nil
}

// DueDate requires the due date to be strictly after now.
func DueDate(due, now time.Time) error {
	if !due.After(now) {
		return model.NewValidationError("due_date", "must be in the future")
	}
	return nil
}

func Status(status model.TaskStatus) error {
	if !status.Valid() {
		return model.NewValidationError("status", fmt.Sprintf("unknown status %d", status))
	}
	return nil
}

func Priority(priority model.TaskPriority) error {
	if !priority.Valid() {
		return model.NewValidationError("priority", fmt.Sprintf("unknown priority %d", priority))
	}
	return nil
}

// CreateTask validates a creation request and returns it with normalized text fields.
func CreateTask(req model.CreateTaskRequest, now time.Time) (model.CreateTaskRequest, error) {
	title, err := Title(req.Title)
	if err != nil {
		return model.CreateTaskRequest{}, err
	}
	req.Title = title

	if req.Description != nil {
		description, err := Description(*req.Description)
		if err != nil {
			return model.CreateTaskRequest{}, err
		}
		if description == "" {
			req.Description = nil
		} else {
			req.Description = &description
		}
	}

	if req.Priority != nil {
		if err := Priority(*req.Priority); err != nil {
			return model.CreateTaskRequest{}, err
		}
	}

	if req.DueDate != nil {
		if err := DueDate(*req.DueDate, now); err != nil {
			return model.CreateTaskRequest{}, err
		}
	}

	return req, nil
}

// UpdateTask validates only the fields present in the partial update.
func UpdateTask(req model.UpdateTaskRequest, now time.Time) (model.UpdateTaskRequest, error) {
	if req.Title != nil {
		title, err := Title(*req.Title)
		if err != nil {
			return model.UpdateTaskRequest{}, err
		}
		req.Title = &title
	}

	if req.Description != nil {
		description, err := Description(*req.Description)
		if err != nil {
			return model.UpdateTaskRequest{}, err
		}
		req.Description = &description
	}

	if req.Status != nil {
		if err := Status(*req.Status); err != nil {
			return model.UpdateTaskRequest{}, err
		}
	}

	if req.Priority != nil {
		if err := Priority(*req.Priority); err != nil {
			return model.UpdateTaskRequest{}, err
		}
	}

	if req.DueDate != nil && req.ClearDueDate {
		return model.UpdateTaskRequest{}, model.NewValidationError("due_date", "cannot set and clear at the same time")
	}
	if req.DueDate != nil {
		if err := DueDate(*req.DueDate, now); err != nil {
			return model.UpdateTaskRequest{}, err
		}
	}

	return req, nil
}

// Register validates a registration request and normalizes the email.
func Register(req model.RegisterRequest) (model.RegisterRequest, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := Username(req.Username); err != nil {
		return model.RegisterRequest{}, err
	}
	if err := Email(req.Email); err != nil {
		return model.RegisterRequest{}, err
	}
	if err := Password(req.Password); err != nil {
		return model.RegisterRequest{}, err
	}
	return req, nil
}

// UpdateProfile validates the touched profile fields.
func UpdateProfile(req model.UpdateProfileRequest) (model.UpdateProfileRequest, error) {
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if err := Email(email); err != nil {
			return model.UpdateProfileRequest{}, err
		}
		req.Email = &email
	}
	if req.Password != nil {
		if err := Password(*req.Password); err != nil {
			return model.UpdateProfileRequest{}, err
		}
	}
	return req, nil
}

// Pagination rejects negative offsets; limits are clamped, not rejected.
func Pagination(p model.Pagination) (model.Pagination, error) {
	if p.Offset < 0 {
		return model.Pagination{}, model.NewValidationError("offset", "must not be negative")
	}
	return p.Normalize(), nil
}

func check(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return model.NewValidationError(field, err.Error())
	}
	return model.NewValidationError(field, reason(fieldErrs[0]))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "username":
		return "may only contain letters, digits and underscores"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
