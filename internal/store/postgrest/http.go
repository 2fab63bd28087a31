package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

// apiError is a non-success response from the REST endpoint.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return e.Message
}

// errorBody is the PostgREST error document.
type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
	Hint    json.RawMessage `json:"hint"`
	// Gateways in front of PostgREST answer with {"error": "..."} or {"msg": "..."}.
	Error string `json:"error"`
	Msg   string `json:"msg"`
}

// readAPIError turns an error response into an *apiError whose message is the
// collaborator's own text.
func readAPIError(resp *http.Response) *apiError {
	body := readErrorBody(resp.Body)
	e := &apiError{Status: resp.StatusCode}

	var doc errorBody
	if err := json.Unmarshal([]byte(body), &doc); err == nil {
		e.Code = doc.Code
		for _, m := range []string{doc.Message, doc.Error, doc.Msg} {
			if m != "" {
				e.Message = m
				return e
			}
		}
	}

	if trimmed := strings.TrimSpace(body); trimmed != "" {
		e.Message = fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, trimmed)
	} else {
		e.Message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return e
}

// readErrorBody reads the response body for error messages.
// Returns a placeholder if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}

// doRequestJSON performs a request with an optional JSON body and decodes the JSON
// response into T. Any status outside expectedStatuses yields an *apiError.
func doRequestJSON[T any](ctx context.Context, c *Client, method, endpoint string, requestBody any, headers map[string]string, expectedStatuses ...int) (*T, http.Header, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(endpoint), bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create request: %w", err)
	}

	c.authorize(req)
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from the configured base URL via resolveURL
	if err != nil {
		return nil, nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if !isExpectedStatus(resp.StatusCode, expectedStatuses) {
		return nil, resp.Header, readAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, fmt.Errorf("could not read response body: %w", err)
	}

	var result T
	if len(bytes.TrimSpace(body)) == 0 {
		return &result, resp.Header, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, resp.Header, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &result, resp.Header, nil
}

// isExpectedStatus checks if a status code is in the list of expected statuses.
func isExpectedStatus(code int, expected []int) bool {
	return slices.Contains(expected, code)
}

// errorDetail returns the text shown to the user for a failed write.
func errorDetail(err error) string {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
