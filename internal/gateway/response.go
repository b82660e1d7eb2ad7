package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Response is a read-only view over one gateway reply body.
type Response struct {
	operation  Operation
	statusCode int
	body       []byte

	once sync.Once
	data map[string]any
	err  error
}

func NewResponse(op Operation, statusCode int, body []byte) *Response {
	return &Response{operation: op, statusCode: statusCode, body: body}
}

func (r *Response) Operation() Operation { return r.operation }

func (r *Response) StatusCode() int { return r.statusCode }

// Bytes returns the body exactly as received.
func (r *Response) Bytes() []byte { return r.body }

func (r *Response) RawBody() string { return string(r.body) }

// Data returns the parsed reply or a *ParseError when the body is not a JSON object.
func (r *Response) Data() (map[string]any, error) {
	r.once.Do(func() {
		decoder := json.NewDecoder(bytes.NewReader(r.body))
		decoder.UseNumber()

		var data map[string]any
		if err := decoder.Decode(&data); err != nil {
			r.err = &ParseError{Operation: r.operation, RawBody: string(r.body), Err: err}
			return
		}
		if data == nil {
			r.err = &ParseError{Operation: r.operation, RawBody: string(r.body), Err: errors.New("reply is not an object")}
			return
		}
		r.data = data
	})
	return r.data, r.err
}

// IsSuccessful classifies the reply by the gateway's own fields. Wallet
// replies carry a success flag; REST replies report errorCode "0" or none.
func (r *Response) IsSuccessful() bool {
	data, err := r.Data()
	if err != nil {
		return false
	}
	if flag, ok := data["success"].(bool); ok {
		return flag
	}
	switch code := r.ErrorCode(); code {
	case "", "0":
		return true
	default:
		return false
	}
}

func (r *Response) ErrorCode() string {
	data, err := r.Data()
	if err != nil {
		return ""
	}
	if code, ok := data["errorCode"]; ok {
		return scalarString(code)
	}
	if nested, ok := data["error"].(map[string]any); ok {
		return scalarString(nested["code"])
	}
	return ""
}

func (r *Response) ErrorMessage() string {
	data, err := r.Data()
	if err != nil {
		return ""
	}
	if msg, ok := data["errorMessage"]; ok {
		return scalarString(msg)
	}
	if nested, ok := data["error"].(map[string]any); ok {
		if msg := scalarString(nested["message"]); msg != "" {
			return msg
		}
		return scalarString(nested["description"])
	}
	return ""
}

// String returns a top-level field as a string. Nested keys are addressed
// with a dot, e.g. "data.orderId".
func (r *Response) String(key string) (string, bool) {
	value, ok := r.lookup(key)
	if !ok || value == nil {
		return "", false
	}
	s := scalarString(value)
	return s, s != ""
}

// Int returns a numeric field, accepting JSON numbers and numeric strings.
func (r *Response) Int(key string) (int, bool) {
	value, ok := r.lookup(key)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case json.Number:
		n, err := strconv.Atoi(v.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func (r *Response) lookup(key string) (any, bool) {
	data, err := r.Data()
	if err != nil {
		return nil, false
	}
	var current any = data
	for _, part := range strings.Split(key, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = object[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
