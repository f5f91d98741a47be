package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceRoundTrip(t *testing.T) {
	id := uuid.New()
	at := time.Date(2024, 2, 29, 23, 59, 59, 123e6, time.UTC)

	ref := FormatReference(id, at)
	assert.Equal(t, "agenda_"+id.String()+"_1709251199123", ref)

	gotID, gotAt, err := ParseReference(ref)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.True(t, gotAt.Equal(at))
}

func TestParseReferenceRejects(t *testing.T) {
	id := uuid.New().String()
	cases := map[string]string{
		"empty":          "",
		"wrong domain":   "gym_" + id + "_1700000000000",
		"missing millis": "agenda_" + id,
		"extra part":     "agenda_" + id + "_1700000000000_x",
		"bad uuid":       "agenda_not-a-uuid_1700000000000",
		"nil uuid":       "agenda_" + uuid.Nil.String() + "_1700000000000",
		"bad millis":     "agenda_" + id + "_soon",
		"negative":       "agenda_" + id + "_-5",
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseReference(ref)
			assert.Error(t, err)
		})
	}
}
