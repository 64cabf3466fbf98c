package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed NoSuchKey", &types.NoSuchKey{}, true},
		{"typed NotFound", &types.NotFound{}, true},
		{"wrapped NoSuchKey", fmt.Errorf("get: %w", &types.NoSuchKey{}), true},
		{"generic api NotFound", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}

func TestIsInvalidRangeError(t *testing.T) {
	assert.True(t, isInvalidRangeError(&smithy.GenericAPIError{Code: "InvalidRange"}))
	assert.False(t, isInvalidRangeError(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isInvalidRangeError(errors.New("InvalidRange")))
}

func TestRangeHeader(t *testing.T) {
	assert.Equal(t, "bytes=0-4095", rangeHeader(0, 4096))
	assert.Equal(t, "bytes=10-19", rangeHeader(10, 10))
}

func TestKeyPrefix(t *testing.T) {
	s := New(nil, Config{Bucket: "b", KeyPrefix: "pool/"})
	assert.Equal(t, "pool/img.0000000000000001", s.fullKey("img.0000000000000001"))
	assert.Equal(t, "img.0000000000000001", s.objectKey("pool/img.0000000000000001"))
}
