//go:build amd64 || arm64

package core

import "github.com/bytedance/sonic"

// sonic.ConfigStd keeps encoding/json semantics (sorted map keys, HTML escaping)
// while using the JIT codec on supported architectures.
var jsonAPI = sonic.ConfigStd

func marshalJSON(v interface{}) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func unmarshalJSON(data []byte, v interface{}) error {
	return jsonAPI.Unmarshal(data, v)
}
