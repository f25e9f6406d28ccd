package reqres

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesBasicFields(t *testing.T) {
	raw := httptest.NewRequest("GET", "/users?x=1", nil)
	req := New(raw, []byte("body"))

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/users", req.Path)
	assert.Equal(t, []string{"1"}, req.Query["x"])
	assert.Equal(t, []byte("body"), req.Body)
}

func TestAttrKey_DistinctEvenWithSameName(t *testing.T) {
	a := NewAttrKey("dup")
	b := NewAttrKey("dup")
	assert.NotEqual(t, a, b)
}

func TestRequest_SetAttrAndAttr(t *testing.T) {
	req := New(httptest.NewRequest("GET", "/", nil), nil)
	key := NewAttrKey("k")

	_, ok := req.Attr(key)
	assert.False(t, ok)

	req.SetAttr(key, 42)
	v, ok := req.Attr(key)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestRequest_CancelIsIdempotent(t *testing.T) {
	req := New(httptest.NewRequest("GET", "/", nil), nil)
	assert.False(t, req.Cancelled())

	req.Cancel()
	req.Cancel()

	assert.True(t, req.Cancelled())
	select {
	case <-req.Context().Done():
	default:
		t.Fatal("expected context to be cancelled")
	}
}

func TestRequest_JSONMemoizes(t *testing.T) {
	req := New(httptest.NewRequest("POST", "/", nil), []byte(`{"a":1}`))
	calls := 0
	parse := func(b []byte) (any, error) {
		calls++
		return string(b), nil
	}

	v1, err1 := req.JSON(parse)
	v2, err2 := req.JSON(parse)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
}

func TestRequest_JSONMemoizesError(t *testing.T) {
	req := New(httptest.NewRequest("POST", "/", nil), []byte(`bad`))
	wantErr := errors.New("parse failed")
	calls := 0
	parse := func(b []byte) (any, error) {
		calls++
		return nil, wantErr
	}

	_, err1 := req.JSON(parse)
	_, err2 := req.JSON(parse)

	assert.Equal(t, wantErr, err1)
	assert.Equal(t, wantErr, err2)
	assert.Equal(t, 1, calls)
}
