//go:build integration

package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objio/pkg/objectstore"
	"github.com/marmos91/objio/pkg/objectstore/storetest"
)

// localstackEndpoint returns the Localstack endpoint, defaulting to the
// standard local port.
func localstackEndpoint() string {
	if ep := os.Getenv("LOCALSTACK_ENDPOINT"); ep != "" {
		return ep
	}
	return "http://localhost:4566"
}

func TestConformance(t *testing.T) {
	ctx := context.Background()

	storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.Store {
		bucket := "objio-test-" + uuid.NewString()[:8]

		s, err := NewFromConfig(ctx, Config{
			Bucket:          bucket,
			Region:          "us-east-1",
			Endpoint:        localstackEndpoint(),
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			ForcePathStyle:  true,
		})
		require.NoError(t, err)

		_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		require.NoError(t, err)

		t.Cleanup(func() {
			// The suite closes s first, so clean up through a fresh handle.
			_ = New(s.client, Config{Bucket: bucket}).DeleteByPrefix(ctx, "")
			_, _ = s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
		})
		return s
	})
}
