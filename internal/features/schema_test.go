package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema_Validation(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		wantErr string
	}{
		{name: "empty", names: nil, wantErr: "schema is empty"},
		{name: "blank name", names: []string{"amount", ""}, wantErr: "empty feature name at position 1"},
		{name: "duplicate", names: []string{"amount", "hour", "amount"}, wantErr: `duplicate feature "amount"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.names)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewSchema_CopiesInput(t *testing.T) {
	in := []string{"amount", "hour"}
	s, err := NewSchema(in)
	require.NoError(t, err)

	in[0] = "mutated"
	assert.Equal(t, []string{"amount", "hour"}, s.Names())

	out := s.Names()
	out[1] = "mutated"
	assert.Equal(t, []string{"amount", "hour"}, s.Names())
}

func TestSchema_Lookup(t *testing.T) {
	s := MustSchema("amount", "hour")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("hour"))
	assert.False(t, s.Contains("typing_speed"))
	assert.Equal(t, 1, s.Position("hour"))
	assert.Equal(t, -1, s.Position("typing_speed"))
}

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema([]byte(`["TransactionAmount","Hour","DayOfWeek"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"TransactionAmount", "Hour", "DayOfWeek"}, s.Names())

	_, err = ParseSchema([]byte(`{"amount": 0}`))
	require.Error(t, err)

	_, err = ParseSchema([]byte(`[]`))
	assert.ErrorIs(t, err, ErrEmptySchema)
}

func TestSchema_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(MustSchema("b", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `["b","a"]`, string(data))
}
