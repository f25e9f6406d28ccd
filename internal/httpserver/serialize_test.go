package httpserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeJSON_AcyclicValueMatchesStandardEncoding(t *testing.T) {
	v := map[string]any{"a": 1.0, "b": []any{"x", "y"}}

	got, err := SerializeJSON(v)
	require.NoError(t, err)

	want, err := json.Marshal(v)
	require.NoError(t, err)

	var gotDecoded, wantDecoded any
	require.NoError(t, json.Unmarshal(got, &gotDecoded))
	require.NoError(t, json.Unmarshal(want, &wantDecoded))
	assert.Equal(t, wantDecoded, gotDecoded)
}

func TestSerializeJSON_SelfReferencingMapEncodesAReferenceMarker(t *testing.T) {
	cyclic := map[string]any{"name": "root"}
	cyclic["self"] = cyclic

	out, err := SerializeJSON(cyclic)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "root", decoded["name"])

	self, ok := decoded["self"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "$", self["$ref"])
}

func TestSerializeJSON_SelfReferencingSliceNeverRecursesForever(t *testing.T) {
	cyclic := make([]any, 1)
	cyclic[0] = cyclic

	out, err := SerializeJSON(cyclic)
	require.NoError(t, err)

	var decoded []any
	require.NoError(t, json.Unmarshal(out, &decoded))
	ref, ok := decoded[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "$", ref["$ref"])
}

func TestSerializeJSON_SharedButAcyclicPointerIsNotTreatedAsACycle(t *testing.T) {
	shared := map[string]any{"id": 1.0}
	v := map[string]any{"first": shared, "second": shared}

	out, err := SerializeJSON(v)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))

	first, ok := decoded["first"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, first["id"])
	_, hasRef := first["$ref"]
	assert.False(t, hasRef)

	second, ok := decoded["second"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, second["id"])
	_, hasRef = second["$ref"]
	assert.False(t, hasRef)
}

func TestSerializeJSON_StructUsesJSONTags(t *testing.T) {
	type inner struct {
		Name string `json:"name"`
		skip string
	}
	v := inner{Name: "a", skip: "b"}

	out, err := SerializeJSON(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a"}`, string(out))
}
