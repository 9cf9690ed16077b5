package earnos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// checkInBody is the single-call tRPC batch envelope the web app sends.
var checkInBody = []byte(`{"0":{"json":null,"meta":{"values":["undefined"]}}}`)

// ErrEmptyToken is returned when CheckIn is called with a blank token.
var ErrEmptyToken = errors.New("empty bearer token")

// RejectedError means the API answered 2xx but the payload did not confirm the check-in.
type RejectedError struct {
	Body []byte
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("check-in not confirmed: %s", string(e.Body))
}

// batchItem is one element of a tRPC batch response: [{"result":{"data":{"json":{...}}}}].
type batchItem struct {
	Result struct {
		Data struct {
			JSON struct {
				Success json.RawMessage `json:"success"`
			} `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

// CheckIn performs one streak check-in for the account behind token.
// It returns nil only when the response carries a truthy result.data.json.success flag.
// Transport failures and non-2xx statuses are returned as wrapped errors; a well-formed
// response without the flag is returned as *RejectedError.
func (c *Client) CheckIn(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	body, err := c.post(ctx, token, checkInBody)
	if err != nil {
		return fmt.Errorf("check-in request failed: %w", err)
	}

	if !IsCheckInSuccess(body) {
		return &RejectedError{Body: body}
	}
	return nil
}

// IsCheckInSuccess reports whether the first batch element has a truthy
// result.data.json.success field. The element is read from index 0 of an array or from the
// "0" key of an object; other elements are never decoded.
func IsCheckInSuccess(body []byte) bool {
	first, ok := firstBatchElement(body)
	if !ok {
		return false
	}
	var item batchItem
	if err := json.Unmarshal(first, &item); err != nil {
		return false
	}
	return truthy(item.Result.Data.JSON.Success)
}

func firstBatchElement(body []byte) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return nil, false
		}
		return items[0], true
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, false
		}
		first, ok := keyed["0"]
		return first, ok
	default:
		return nil, false
	}
}

// truthy follows JavaScript truthiness for a decoded JSON value.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
