package commsutil

import "encoding/json"

// EncodePayload serializes a message body.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes a message body into a new T.
func DecodePayload[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
