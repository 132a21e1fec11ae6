package ops

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/errors"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fixClock pins the note clock for the duration of the test.
func fixClock(t *testing.T, unix int64) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Unix(unix, 0) }
	t.Cleanup(func() { now = prev })
}

func TestValidateTag(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "todo", want: "#todo"},
		{in: "#todo", want: "#todo"},
		{in: " #TODO ", want: "#todo"},
		{in: "bar-1_x", want: "#bar-1_x"},
		{in: "", wantErr: true},
		{in: "#", wantErr: true},
		{in: "two words", wantErr: true},
		{in: "#a/b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateTag(tt.in)
			if tt.wantErr {
				require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
