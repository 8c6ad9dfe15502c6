package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDate(t *testing.T) {
	iso, err := ParseDate("2025-10-05")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.October, 5), iso)

	dayFirst, err := ParseDate("05/10/2025")
	require.NoError(t, err)
	assert.Equal(t, iso, dayFirst)

	_, err = ParseDate("not-a-date")
	assert.Error(t, err)

	_, err = ParseDate("2025-13-45")
	assert.Error(t, err)
}

func TestDateYAMLRoundTrip(t *testing.T) {
	type wrapper struct {
		When Date `yaml:"when"`
	}

	out, err := yaml.Marshal(wrapper{When: NewDate(2025, time.March, 7)})
	require.NoError(t, err)

	var in wrapper
	require.NoError(t, yaml.Unmarshal(out, &in))
	assert.Equal(t, "2025-03-07", in.When.String())

	var empty wrapper
	require.NoError(t, yaml.Unmarshal([]byte("when: \"\"\n"), &empty))
	assert.True(t, empty.When.IsZero())
}

func TestIsException(t *testing.T) {
	assert.True(t, IsException(ExceptionStatus("FX - missing rate")))
	assert.False(t, IsException(StatusReady))
	assert.False(t, IsException(StatusReviewPending))
	assert.False(t, IsException(StatusPosted))
}
