package validation

import (
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
)

// Validator validates structs against `validate` struct tags.
// Supported rules: required, email, mac, min=N, max=N, len=N,
// gte=N, lte=N, oneof=a b c.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate expects a struct")
	}

	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		tag := fieldType.Tag.Get("validate")

		if tag == "" {
			continue
		}

		if err := v.validateField(field, tag); err != nil {
			return fmt.Errorf("%s: %w", fieldType.Name, err)
		}
	}

	return nil
}

// validateField validates a single field
func (v *Validator) validateField(field reflect.Value, tag string) error {
	rules := strings.Split(tag, ",")

	for _, rule := range rules {
		parts := strings.SplitN(rule, "=", 2)
		ruleName := parts[0]
		arg := ""
		if len(parts) == 2 {
			arg = parts[1]
		}

		switch ruleName {
		case "required":
			if field.IsZero() {
				return fmt.Errorf("field is required")
			}

		case "email":
			if field.Kind() == reflect.String && field.String() != "" {
				email := field.String()
				at := strings.Index(email, "@")
				if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
					return fmt.Errorf("invalid email format")
				}
			}

		case "mac":
			if field.Kind() == reflect.String && field.String() != "" {
				if _, err := net.ParseMAC(field.String()); err != nil {
					return fmt.Errorf("invalid MAC address")
				}
			}

		case "min":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			if field.Kind() == reflect.String && len(field.String()) < n {
				return fmt.Errorf("minimum length is %d", n)
			}

		case "max":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			if field.Kind() == reflect.String && len(field.String()) > n {
				return fmt.Errorf("maximum length is %d", n)
			}

		case "len":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			if field.Kind() == reflect.String && len(field.String()) != n {
				return fmt.Errorf("length must be %d", n)
			}

		case "gte":
			n, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				continue
			}
			if isInt(field) && field.Int() < n {
				return fmt.Errorf("must be at least %d", n)
			}

		case "lte":
			n, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				continue
			}
			if isInt(field) && field.Int() > n {
				return fmt.Errorf("must be at most %d", n)
			}

		case "oneof":
			if field.Kind() == reflect.String && field.String() != "" {
				allowed := strings.Fields(arg)
				found := false
				for _, a := range allowed {
					if field.String() == a {
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
				}
			}
		}
	}

	return nil
}

func isInt(field reflect.Value) bool {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}
