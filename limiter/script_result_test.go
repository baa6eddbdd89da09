package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptInt(t *testing.T) {
	tests := []struct {
		name  string
		reply interface{}
		want  int64
	}{
		{"int64", int64(7), 7},
		{"int", 3, 3},
		{"int32", int32(-1), -1},
		{"float", 2.9, 2},
		{"integer string", "12", 12},
		{"float string", "4.5", 4},
		{"bytes", []byte("9"), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scriptInt(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScriptInt_Rejects(t *testing.T) {
	for _, reply := range []interface{}{nil, "abc", []interface{}{int64(1)}, true} {
		_, err := scriptInt(reply)
		assert.ErrorIs(t, err, ErrUnexpectedScriptResult, "%#v", reply)
		assert.False(t, IsConfigurationError(err))
	}
}
