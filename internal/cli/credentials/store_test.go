package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContextIsExpired(t *testing.T) {
	cases := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"expired in past", time.Now().Add(-time.Hour), true},
		{"expires within grace window", time.Now().Add(10 * time.Second), true},
		{"not expired", time.Now().Add(time.Hour), false},
		{"zero time never expires", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Context{ExpiresAt: tc.expiresAt}
			require.Equal(t, tc.want, c.IsExpired())
		})
	}
}

func TestStoreSaveLoadCurrent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s, err := Load()
	require.NoError(t, err)
	_, err = s.Current()
	require.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.Save(&Context{ServerURL: "http://localhost:9091", Token: "tok"}))

	reloaded, err := Load()
	require.NoError(t, err)
	ctx, err := reloaded.Current()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9091", ctx.ServerURL)
	require.Equal(t, "tok", ctx.Token)
}

func TestStoreClear(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s, err := Load()
	require.NoError(t, err)
	require.NoError(t, s.Save(&Context{ServerURL: "http://localhost:9091", Token: "tok"}))
	require.NoError(t, s.Clear())

	_, err = s.Current()
	require.ErrorIs(t, err, ErrNotLoggedIn)
}
