package testx

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

func executeRequest(req *http.Request, h http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func unmarshalBody[T any](res *httptest.ResponseRecorder) T {
	body, _ := io.ReadAll(res.Body)
	var data T
	_ = json.Unmarshal(body, &data)
	return data
}

// NDJSON joins lines into a newline delimited body, terminated by a newline.
func NDJSON(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// PostNDJSON sends body to h as a newline delimited JSON request and decodes the JSON
// response into T.
func PostNDJSON[T any](h http.Handler, url string, body string) (*httptest.ResponseRecorder, T) {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-ndjson")

	res := executeRequest(req, h)
	return res, unmarshalBody[T](res)
}

func GetJSON[T any](h http.Handler, url string) (*httptest.ResponseRecorder, T) {
	req := httptest.NewRequest(http.MethodGet, url, nil)

	res := executeRequest(req, h)
	return res, unmarshalBody[T](res)
}

// PostJSON sends body to h as a JSON request and decodes the JSON response into T.
func PostJSON[T any](h http.Handler, url string, body string) (*httptest.ResponseRecorder, T) {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res := executeRequest(req, h)
	return res, unmarshalBody[T](res)
}

// Get sends a GET request to h and leaves the response body unread.
func Get(h http.Handler, url string) *httptest.ResponseRecorder {
	return executeRequest(httptest.NewRequest(http.MethodGet, url, nil), h)
}
