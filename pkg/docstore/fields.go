package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// fields is a document split into its top-level members.
type fields map[string]json.RawMessage

var errNotObject = errors.New("docstore: document must be a JSON object")

func toFields(doc any) (fields, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return parseFields(raw)
}

func parseFields(raw []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotObject
	}
	return f, nil
}

func (f fields) merge(patch map[string]any) error {
	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("patch field %q: %w", k, err)
		}
		f[k] = raw
	}
	return nil
}

func (f fields) intField(field string) (int64, error) {
	raw, ok := f[field]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(bytes.Trim(raw, `"`)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNotInteger, field)
	}
	return n, nil
}

func (f fields) setIntField(field string, v int64) {
	f[field] = json.RawMessage(strconv.FormatInt(v, 10))
}

func (f fields) equals(field string, want []byte) bool {
	raw, ok := f[field]
	if !ok {
		return false
	}
	var a, b bytes.Buffer
	if json.Compact(&a, raw) != nil || json.Compact(&b, want) != nil {
		return false
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

func (f fields) encode() (json.RawMessage, error) {
	return json.Marshal(f)
}
