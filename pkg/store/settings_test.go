package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetSetting(ctx, SettingAPIKey, "sk-123"))

	v, err := s.GetSetting(ctx, SettingAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-123", v)

	// Replacing an existing value keeps a single row.
	require.NoError(t, s.SetSetting(ctx, SettingAPIKey, "sk-456"))
	v, err = s.GetSetting(ctx, SettingAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-456", v)
}

func TestGetSettingMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSetting(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetSettingRejectsBlankKey(t *testing.T) {
	s := newTestStore(t)

	err := s.SetSetting(context.Background(), "   ", "v")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteSetting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetSetting(ctx, "theme", "dark"))
	require.NoError(t, s.DeleteSetting(ctx, "theme"))

	_, err := s.GetSetting(ctx, "theme")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteSetting(ctx, "theme")
	assert.ErrorIs(t, err, ErrNotFound)
}
