package core

import "fmt"

// JSONEncode encodes a value to JSON bytes (fail-fast on nil input)
func JSONEncode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, &Error{Code: CodeInvalidInput, Message: "cannot encode nil value"}
	}
	data, err := marshalJSON(v)
	if err != nil {
		return nil, fmt.Errorf("json encode failed: %w", err)
	}
	return data, nil
}

// JSONDecode decodes JSON bytes into v (fail-fast on empty data or nil target)
func JSONDecode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return &Error{Code: CodeInvalidInput, Message: "cannot decode empty data"}
	}
	if v == nil {
		return &Error{Code: CodeInvalidInput, Message: "cannot decode into nil value"}
	}
	if err := unmarshalJSON(data, v); err != nil {
		return fmt.Errorf("json decode failed: %w", err)
	}
	return nil
}
