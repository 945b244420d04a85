package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimezone(t *testing.T) {
	tests := []struct {
		name    string
		tz      string
		want    string
		wantErr bool
	}{
		{name: "empty string is local", tz: "", want: time.Local.String()},
		{name: "UTC", tz: "UTC", want: "UTC"},
		{name: "Asia/Seoul", tz: "Asia/Seoul", want: "Asia/Seoul"},
		{name: "America/New_York", tz: "America/New_York", want: "America/New_York"},
		{name: "invalid timezone", tz: "Invalid/Timezone", want: time.Local.String(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseTimezone(tt.tz)
			if tt.wantErr {
				assert.ErrorContains(t, err, tt.tz)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, loc)
			assert.Equal(t, tt.want, loc.String())
		})
	}
}

func TestClock(t *testing.T) {
	loc, err := ParseTimezone("Asia/Seoul")
	require.NoError(t, err)

	now := Clock(loc)()
	assert.Equal(t, loc, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Minute)

	assert.Equal(t, time.Local, Clock(nil)().Location())
}
