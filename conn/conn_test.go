package conn

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndReset(t *testing.T) {
	t.Cleanup(Reset)

	installed := dynamodb.NewFromConfig(aws.Config{Region: "eu-north-1"})
	Set(installed)

	got, err := Client(context.Background())
	require.NoError(t, err)
	assert.Same(t, installed, got)

	// the shared client is sticky until reset
	again, err := Client(context.Background())
	require.NoError(t, err)
	assert.Same(t, installed, again)

	Reset()
	replacement := dynamodb.NewFromConfig(aws.Config{Region: "eu-west-1"})
	Set(replacement)

	got, err = Client(context.Background())
	require.NoError(t, err)
	assert.Same(t, replacement, got)
}
