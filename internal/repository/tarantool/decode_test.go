package tarantool

import (
	"testing"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePoll(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tuple := []interface{}{
		"p1",
		"Color?",
		[]interface{}{
			map[interface{}]interface{}{"label": "Red", "voters": []interface{}{"u1", "u2"}},
			map[interface{}]interface{}{"label": "Blue", "voters": []interface{}{}},
		},
		uint64(created.UnixMilli()),
		int64(created.Add(24 * time.Hour).UnixMilli()),
	}

	poll, err := decodePoll(tuple)
	require.NoError(t, err)

	assert.Equal(t, "p1", poll.ID)
	assert.Equal(t, "Color?", poll.Question)
	assert.Equal(t, []models.Option{
		{Label: "Red", Voters: []string{"u1", "u2"}},
		{Label: "Blue", Voters: []string{}},
	}, poll.Options)
	assert.True(t, poll.CreatedAt.Equal(created))
	assert.True(t, poll.ExpiresAt.Equal(created.Add(24*time.Hour)))
}

func TestDecodePoll_BadTuples(t *testing.T) {
	tests := []struct {
		name  string
		tuple []interface{}
	}{
		{"short", []interface{}{"p1", "q"}},
		{"id type", []interface{}{1, "q", []interface{}{}, uint64(1), uint64(2)}},
		{"options type", []interface{}{"p1", "q", "nope", uint64(1), uint64(2)}},
		{"voter type", []interface{}{"p1", "q", []interface{}{
			map[interface{}]interface{}{"label": "a", "voters": []interface{}{7}},
		}, uint64(1), uint64(2)}},
		{"timestamp type", []interface{}{"p1", "q", []interface{}{}, "x", uint64(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePoll(tt.tuple)
			assert.ErrorIs(t, err, models.ErrFailedToProcessData)
		})
	}
}

func TestConvertKeys_Nested(t *testing.T) {
	in := map[interface{}]interface{}{
		"outer": []interface{}{map[interface{}]interface{}{1: "one"}},
	}
	out, ok := convertKeys(in).(map[string]interface{})
	require.True(t, ok)
	inner, ok := out["outer"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"1": "one"}, inner[0])
}

func TestDecodeIDs(t *testing.T) {
	ids, err := decodeIDs([]interface{}{[]interface{}{"u1", "u2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)

	ids, err = decodeIDs([]interface{}{[]interface{}{}})
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, data := range [][]interface{}{
		nil,
		{"u1"},
		{[]interface{}{"u1", int64(2)}},
	} {
		_, err = decodeIDs(data)
		assert.ErrorIs(t, err, models.ErrFailedToProcessData)
	}
}
