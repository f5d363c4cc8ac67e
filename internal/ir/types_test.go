package ir

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableState_Settled(t *testing.T) {
	tests := []struct {
		name  string
		state VariableState
		want  bool
	}{
		{"pending", Pending(), false},
		{"fulfilled", Fulfilled(2.0), true},
		{"rejected", Rejected(errors.New("boom")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Settled())
		})
	}
}

func TestCellState_Output(t *testing.T) {
	st := CellState{Kind: KindCode, Outputs: []NamedValue{{Name: "a", Value: 2.0}}}

	v, ok := st.Output("a")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = st.Output("b")
	assert.False(t, ok)
}

func TestDelta_Empty(t *testing.T) {
	assert.True(t, Delta{}.Empty())
	assert.False(t, Delta{Added: []string{"x"}}.Empty())
}

func TestSnapshot_CellByCode(t *testing.T) {
	s := Snapshot{Cells: []Cell{{ID: "a", Code: "1"}, {ID: "b", Code: "2"}}}
	c, ok := s.CellByCode("2")
	assert.True(t, ok)
	assert.Equal(t, "b", c.ID)
}

func TestVariableState_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		state VariableState
		want  string
	}{
		{"pending", Pending(), `{"type":"pending"}`},
		{"fulfilled", Fulfilled(2.0), `{"type":"fulfilled","value":2}`},
		{"fulfilled undefined", Fulfilled(nil), `{"type":"fulfilled"}`},
		{"rejected", VariableState{Kind: StateRejected, Err: errors.New("boom"), Line: 3}, `{"type":"rejected","error":"boom","line":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.state)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestCellState_Clone(t *testing.T) {
	st := CellState{Kind: KindCode, Displays: []any{1.0}, Outputs: []NamedValue{{Name: "a", Value: 1.0}}}
	cp := st.Clone()
	cp.Displays[0] = 2.0
	cp.Outputs[0].Value = 2.0

	assert.Equal(t, 1.0, st.Displays[0])
	assert.Equal(t, 1.0, st.Outputs[0].Value)
}
