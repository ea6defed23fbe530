package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusDue.Terminal())
	assert.False(t, StatusPublishing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusPartialFailure.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestErrorKindRetryable(t *testing.T) {
	assert.True(t, ErrKindTimeout.Retryable())
	assert.True(t, ErrKindNetwork.Retryable())
	assert.False(t, ErrKindValidation.Retryable())
	assert.False(t, ErrKindCredentialUnavailable.Retryable())
	assert.False(t, ErrKindPlatformRejected.Retryable())
	assert.False(t, ErrKindExhaustedRetries.Retryable())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		job       PostJob
		wantField string
	}{
		{
			name: "valid",
			job: PostJob{
				Platforms: StringArray{PlatformFacebook, PlatformTwitter},
				Content:   ContentMap{PlatformFacebook: "hello", PlatformTwitter: "hi"},
			},
		},
		{
			name:      "no platforms",
			job:       PostJob{Content: ContentMap{PlatformFacebook: "hello"}},
			wantField: "platforms",
		},
		{
			name: "unknown platform",
			job: PostJob{
				Platforms: StringArray{"myspace"},
				Content:   ContentMap{"myspace": "hello"},
			},
			wantField: "platforms",
		},
		{
			name:      "no content",
			job:       PostJob{Platforms: StringArray{PlatformFacebook}},
			wantField: "content",
		},
		{
			name: "content for unrequested platform",
			job: PostJob{
				Platforms: StringArray{PlatformFacebook},
				Content:   ContentMap{PlatformFacebook: "a", PlatformTwitter: "b"},
			},
			wantField: "content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	ok := PlatformResult{Success: true, ExternalID: "1"}
	bad := PlatformResult{Success: false, Error: ErrKindNetwork}

	assert.Equal(t, StatusCompleted, DeriveStatus(ResultMap{"facebook": ok, "twitter": ok}))
	assert.Equal(t, StatusPartialFailure, DeriveStatus(ResultMap{"facebook": ok, "twitter": bad}))
	assert.Equal(t, StatusFailed, DeriveStatus(ResultMap{"facebook": bad, "twitter": bad}))
	assert.Equal(t, StatusFailed, DeriveStatus(ResultMap{}))
}

func TestNormalizePlatforms(t *testing.T) {
	got := NormalizePlatforms([]string{" Facebook ", "TWITTER", "facebook", "", "twitter"})
	assert.Equal(t, StringArray{"facebook", "twitter"}, got)
}

func TestStringArrayRoundTrip(t *testing.T) {
	in := StringArray{"facebook", "linkedin"}
	value, err := in.Value()
	require.NoError(t, err)

	var out StringArray
	require.NoError(t, out.Scan(value))
	assert.Equal(t, in, out)

	var empty StringArray
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
}

func TestResultMapRoundTrip(t *testing.T) {
	in := ResultMap{
		"facebook": {Success: true, ExternalID: "123", URL: "https://facebook.com/123"},
		"twitter":  {Success: false, Error: ErrKindTimeout, Message: "deadline exceeded"},
	}
	value, err := in.Value()
	require.NoError(t, err)

	var out ResultMap
	require.NoError(t, out.Scan(value))
	assert.Equal(t, in, out)
}
