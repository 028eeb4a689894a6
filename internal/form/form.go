// Package form validates record fields submitted from create and edit
// forms against a per-resource rule table.
package form

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pitabwire/erpconsole/model"
)

// Rule constrains one field.
type Rule = model.FieldRule

// Rules maps field names to their rule.
type Rules = map[string]Rule

// Validator checks values against Rules. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	patterns sync.Map
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// NewValidator returns a validator with the console's custom tags
// registered: phone and no_xss.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.ReplaceAll(fl.Field().String(), " ", ""))
	})
	_ = v.RegisterValidation("no_xss", validateNoXSS)
	return &Validator{validate: v}
}

var xssMarkers = []string{"<script", "javascript:", "onerror=", "onload=", "<iframe", "document.cookie"}

func validateNoXSS(fl validator.FieldLevel) bool {
	value := strings.ToLower(fl.Field().String())
	for _, m := range xssMarkers {
		if strings.Contains(value, m) {
			return false
		}
	}
	return true
}

// Check reports rules whose pattern does not compile or whose tag is unknown.
func (v *Validator) Check(rules Rules) error {
	for _, field := range sortedFields(rules) {
		r := rules[field]
		if r.Pattern != "" {
			if _, err := v.pattern(r.Pattern); err != nil {
				return fmt.Errorf("form: field %q: %w", field, err)
			}
		}
		if r.Tag != "" {
			if err := v.checkTag(r.Tag); err != nil {
				return fmt.Errorf("form: field %q: %w", field, err)
			}
		}
	}
	return nil
}

// checkTag runs the tag once against an empty value; the validator panics
// on unknown tags.
func (v *Validator) checkTag(tag string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid tag %q: %v", tag, r)
		}
	}()
	_ = v.validate.Var("", tag)
	return nil
}

// Validate checks values and returns one error per failing field, ordered by
// field name. Empty optional fields are not checked further.
func (v *Validator) Validate(rules Rules, values map[string]any) []model.FieldError {
	var errs []model.FieldError
	for _, field := range sortedFields(rules) {
		r := rules[field]
		val := values[field]

		if isEmpty(val) {
			if r.Required {
				errs = append(errs, fieldError(field, "required", r.Message, "%s is required"))
			}
			continue
		}

		if r.Pattern != "" {
			re, err := v.pattern(r.Pattern)
			if err != nil || !re.MatchString(fmt.Sprint(val)) {
				errs = append(errs, fieldError(field, "pattern", r.Message, "%s has an invalid format"))
				continue
			}
		}

		if r.Tag != "" {
			if code := v.runTag(val, r.Tag); code != "" {
				errs = append(errs, fieldError(field, code, r.Message, "%s is invalid"))
			}
		}
	}
	return errs
}

func (v *Validator) runTag(val any, tag string) (code string) {
	defer func() {
		if r := recover(); r != nil {
			code = "invalid"
		}
	}()
	err := v.validate.Var(val, tag)
	if err == nil {
		return ""
	}
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		return ve[0].Tag()
	}
	return "invalid"
}

func (v *Validator) pattern(expr string) (*regexp.Regexp, error) {
	if re, ok := v.patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	v.patterns.Store(expr, re)
	return re, nil
}

// Summary is the single message shown when a submission is rejected.
func Summary(errs []model.FieldError) string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return errs[0].Message
	}
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	return fmt.Sprintf("Please correct %d fields: %s", len(errs), strings.Join(fields, ", "))
}

func fieldError(field, code, custom, format string) model.FieldError {
	msg := custom
	if msg == "" {
		msg = fmt.Sprintf(format, field)
	}
	return model.FieldError{Field: field, Code: code, Message: msg}
}

func isEmpty(val any) bool {
	switch x := val.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func sortedFields(rules Rules) []string {
	fields := make([]string, 0, len(rules))
	for f := range rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
