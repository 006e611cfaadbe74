package services

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// maxSSELine bounds a single server-sent event line.
const maxSSELine = 1024 * 1024

// readSSE feeds the payload of every "data:" line to handle until handle
// returns false or an error, or the stream ends. Comment, event and blank
// lines are skipped.
func readSSE(r io.Reader, handle func(data []byte) (bool, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxSSELine)

	for scanner.Scan() {
		data, ok := bytes.CutPrefix(scanner.Bytes(), []byte("data:"))
		if !ok {
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		more, err := handle(data)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}

// checkStatus turns a non-200 response into an error carrying the body.
// The body is closed in that case.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
}
