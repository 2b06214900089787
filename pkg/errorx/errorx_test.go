package errorx

import (
	"errors"
	"net/http"
	"testing"
)

type testCoder struct{ code, status int }

func (c testCoder) Code() int         { return c.code }
func (c testCoder) HTTPStatus() int   { return c.status }
func (c testCoder) String() string    { return "test" }
func (c testCoder) Reference() string { return "" }

func TestWrapCAndParse(t *testing.T) {
	Register(testCoder{code: 990001, status: http.StatusConflict})

	base := errors.New("boom")
	err := WrapC(base, 990001, "doing %s", "work")
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if got := ParseCoder(err).HTTPStatus(); got != http.StatusConflict {
		t.Errorf("status = %d, want %d", got, http.StatusConflict)
	}
	if !IsCode(err, 990001) {
		t.Errorf("IsCode should match")
	}
	if err.Error() != "doing work: boom" {
		t.Errorf("message = %q", err.Error())
	}
	if WrapC(nil, 990001, "x") != nil {
		t.Errorf("WrapC(nil) should be nil")
	}
}

func TestParseCoderUnknown(t *testing.T) {
	c := ParseCoder(errors.New("plain"))
	if c.Code() != ErrUnknown || c.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("unexpected coder %d/%d", c.Code(), c.HTTPStatus())
	}
}
