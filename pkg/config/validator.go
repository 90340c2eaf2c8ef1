package config

import (
	"fmt"
	"reflect"
	"strings"
)

// RequiredFields validates that the named fields are not zero values.
// Nested fields use dot notation ("Auth.SecretKey").
func RequiredFields(fields ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		val := structValue(config)
		if val.Kind() != reflect.Struct {
			return fmt.Errorf("config must be a struct")
		}

		var missing []string
		for _, name := range fields {
			fieldVal := getNestedField(val, name)
			if !fieldVal.IsValid() {
				return fmt.Errorf("field %s not found in config struct", name)
			}
			if fieldVal.IsZero() {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("required fields are missing: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

// RangeValidator validates that a numeric field is within [min, max]
func RangeValidator(fieldName string, min, max float64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal := getNestedField(structValue(config), fieldName)
		if !fieldVal.IsValid() {
			return fmt.Errorf("field %s not found", fieldName)
		}

		var n float64
		switch fieldVal.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = float64(fieldVal.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = float64(fieldVal.Uint())
		case reflect.Float32, reflect.Float64:
			n = fieldVal.Float()
		default:
			return fmt.Errorf("field %s is not numeric", fieldName)
		}

		if n < min || n > max {
			return fmt.Errorf("field %s value %v is out of range [%v, %v]", fieldName, n, min, max)
		}
		return nil
	})
}

// StringLengthValidator validates the byte length of a string field
func StringLengthValidator(fieldName string, minLen, maxLen int) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal := getNestedField(structValue(config), fieldName)
		if !fieldVal.IsValid() {
			return fmt.Errorf("field %s not found", fieldName)
		}
		if fieldVal.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", fieldName)
		}
		if l := len(fieldVal.String()); l < minLen || l > maxLen {
			return fmt.Errorf("field %s length %d is out of range [%d, %d]", fieldName, l, minLen, maxLen)
		}
		return nil
	})
}

// OneOfValidator validates that a string field holds one of the allowed values.
// Comparison is case-insensitive; an empty value passes so defaults can apply.
func OneOfValidator(fieldName string, allowed ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal := getNestedField(structValue(config), fieldName)
		if !fieldVal.IsValid() {
			return fmt.Errorf("field %s not found", fieldName)
		}
		if fieldVal.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", fieldName)
		}
		v := fieldVal.String()
		if v == "" {
			return nil
		}
		for _, a := range allowed {
			if strings.EqualFold(v, a) {
				return nil
			}
		}
		return fmt.Errorf("field %s value %q is not one of %v", fieldName, v, allowed)
	})
}

func structValue(config interface{}) reflect.Value {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	return val
}

func getNestedField(val reflect.Value, fieldPath string) reflect.Value {
	current := val
	for _, part := range strings.Split(fieldPath, ".") {
		if current.Kind() == reflect.Ptr {
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return reflect.Value{}
		}
		current = current.FieldByName(part)
		if !current.IsValid() {
			return reflect.Value{}
		}
	}
	return current
}
