package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-indexing-service/internal/job"
	"github.com/tinywideclouds/go-indexing-service/internal/pipeline"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(urls []string) (*job.Handle, error) {
	args := m.Called(urls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Handle), args.Error(1)
}

func TestBatchRequestTransformer(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid payload", func(t *testing.T) {
		msg := &messagepipeline.Message{MessageData: messagepipeline.MessageData{
			ID:      "msg-1",
			Payload: []byte(`{"urls": ["https://example.com/a", "  ", "https://example.com/b "]}`),
		}}

		req, skip, err := pipeline.BatchRequestTransformer(ctx, msg)

		require.NoError(t, err)
		assert.False(t, skip)
		assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, req.URLs)
	})

	t.Run("Malformed payload is skipped", func(t *testing.T) {
		msg := &messagepipeline.Message{MessageData: messagepipeline.MessageData{
			ID:      "msg-2",
			Payload: []byte(`{"urls": `),
		}}

		req, skip, err := pipeline.BatchRequestTransformer(ctx, msg)

		assert.Error(t, err)
		assert.True(t, skip)
		assert.Nil(t, req)
	})
}

func TestProcessor_Submission(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	msg := messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "msg-1"}}
	urls := []string{"https://example.com/a"}

	t.Run("Accepted", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", urls).Return(&job.Handle{ID: "job-1"}, nil)
		processor := pipeline.NewProcessor(submitter, logger)

		err := processor(ctx, msg, &pipeline.BatchRequest{URLs: urls})

		require.NoError(t, err)
		submitter.AssertExpectations(t)
	})

	t.Run("Running job nacks for redelivery", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", urls).Return(nil, job.ErrJobRunning)
		processor := pipeline.NewProcessor(submitter, logger)

		err := processor(ctx, msg, &pipeline.BatchRequest{URLs: urls})

		assert.ErrorIs(t, err, job.ErrJobRunning)
	})

	t.Run("Empty request is dropped", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", []string{}).Return(nil, job.ErrNoURLs)
		processor := pipeline.NewProcessor(submitter, logger)

		err := processor(ctx, msg, &pipeline.BatchRequest{URLs: []string{}})

		assert.NoError(t, err)
	})

	t.Run("Unexpected error is returned", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", urls).Return(nil, errors.New("boom"))
		processor := pipeline.NewProcessor(submitter, logger)

		err := processor(ctx, msg, &pipeline.BatchRequest{URLs: urls})

		assert.EqualError(t, err, "boom")
	})
}
