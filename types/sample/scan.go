package sample

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ScanJSONMessages reads a stream of JSON messages from an io.Reader,
// and calls onEach for each decoded message.
// If the stream is encoded as a JSON array, onEach is called
// for each element in the array.
func ScanJSONMessages(body io.Reader, onEach func(message json.RawMessage) error) error {
	buf := bufio.NewReader(body)
	peek, err := buf.Peek(1)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewBuffer(peek))
	t, err := dec.Token()
	if err != nil {
		return err
	}
	dec = json.NewDecoder(buf)
	if t == json.Delim('[') {
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	for dec.More() {
		var msg json.RawMessage
		err := dec.Decode(&msg)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("decode err: %T %w", err, err)
			}
			break
		}
		if err := onEach(msg); err != nil {
			return err
		}
	}
	return nil
}

// ScanSamples decodes every message in body as a Sample.
// Malformed samples are passed to onMalformed, if not nil, and skipped.
func ScanSamples(body io.Reader, onEach func(s Sample) error, onMalformed func(raw json.RawMessage, err error)) error {
	return ScanJSONMessages(body, func(message json.RawMessage) error {
		s, err := Decode(message)
		if err != nil {
			if onMalformed != nil {
				onMalformed(message, err)
			}
			return nil
		}
		return onEach(s)
	})
}
