package kafka

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPayload = errors.New("kafka: invalid payload")

type Batch struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Decode parses a message value in either accepted form.
func Decode(value []byte) (Batch, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return Batch{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if value[0] == '{' {
		var b Batch
		if err := json.Unmarshal(value, &b); err != nil {
			return Batch{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if b.Name == "" {
			return Batch{}, fmt.Errorf("%w: missing name", ErrInvalidPayload)
		}
		return b, nil
	}

	name, rest, ok := strings.Cut(string(value), " ")
	if !ok || name == "" {
		return Batch{}, fmt.Errorf("%w: want \"name v[,v...]\"", ErrInvalidPayload)
	}
	fields := strings.Split(strings.TrimSpace(rest), ",")
	b := Batch{Name: name, Values: make([]float64, 0, len(fields))}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Batch{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		b.Values = append(b.Values, v)
	}
	return b, nil
}

// Encode renders b in the text form.
func Encode(b Batch) []byte {
	var sb strings.Builder
	sb.WriteString(b.Name)
	sb.WriteByte(' ')
	for i, v := range b.Values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return []byte(sb.String())
}
