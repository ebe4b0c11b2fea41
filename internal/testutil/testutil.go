// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return httptest.NewRequest(method, path, r)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// DetectionsCSV is a small detection table with two tracks. Track 1 walks
// left to right across x = 320 between frames 0 and 2; track 2 stays on the
// left half.
const DetectionsCSV = `id,label,x,y,w,h,score,frame,timestamp
1,person,90,90,20,20,0.9,0,0.0
2,car,40,300,20,20,0.8,0,0.0
1,person,290,90,20,20,0.85,1,0.5
2,car,60,300,20,20,0.7,1,0.5
1,person,390,90,20,20,0.95,2,1.0
`
