package facts

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONPreservesOrder(t *testing.T) {
	st, err := FromJSON([]byte(`{"z":1,"a":"x","m":[true,null,"y"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, st.Keys())
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"x","m":[true,null,"y"]}`, string(raw))
}

func TestFromJSONRejectsObjects(t *testing.T) {
	_, err := FromJSON([]byte(`{"property.address":{"line1":"x"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFlat))

	_, err = FromJSON([]byte(`{"grounds":[["8"]]}`))
	assert.True(t, errors.Is(err, ErrNotFlat))
}

func TestFromJSONEmpty(t *testing.T) {
	st, err := FromJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
}

func TestAccessors(t *testing.T) {
	st, err := FromJSON([]byte(`{"rent":"950.50","deposit_protected":"yes","flag":false,"names":["a"," ","b"]}`))
	require.NoError(t, err)

	n, ok := st.Number("rent")
	assert.True(t, ok)
	assert.InDelta(t, 950.5, n, 0.0001)

	v, ok := st.Truth("deposit_protected")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = st.Truth("flag")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = st.Truth("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, st.TextList("names"))
}

func TestArrayConstructorRejectsNesting(t *testing.T) {
	inner := Strings("a")
	_, err := Array(String("x"), inner)
	assert.True(t, errors.Is(err, ErrNotFlat))

	v, err := Array(String("x"), Number(2), Null())
	require.NoError(t, err)
	assert.Equal(t, "x, 2, ", v.Text())
}

func TestSyncEvidenceFlags(t *testing.T) {
	m := NewMapper()
	st := m.SyncEvidenceFlags(NewStore(), map[EvidenceKind][]string{
		EvidenceGasSafety: {"f1", "f2"},
	})

	flags := EvidenceFlags(st)
	assert.True(t, flags[EvidenceGasSafety])
	assert.False(t, flags[EvidenceEPC])
	assert.Equal(t, []string{"f1", "f2"}, st.TextList(EvidenceGasSafety.FilesKey()))

	// Flag drops back to false when no records remain for the kind.
	st = m.SyncEvidenceFlags(st, nil)
	assert.False(t, EvidenceFlags(st)[EvidenceGasSafety])
}
