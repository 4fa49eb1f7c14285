package toolkit

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func jsonUnmarshal(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}
