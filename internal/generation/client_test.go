package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dshills/qaforge/internal/generation"
	"github.com/dshills/qaforge/internal/generation/mocks"
	"github.com/dshills/qaforge/pkg/types"
)

func newMockBackend(t *testing.T) *mocks.MockBackend {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().Name().Return("mock").AnyTimes()
	backend.EXPECT().Model().Return("mock-model").AnyTimes()
	return backend
}

func testConfig() generation.ClientConfig {
	cfg := generation.DefaultClientConfig()
	cfg.QuestionsPerSegment = 2
	cfg.ScaleTimeouts = false
	cfg.QuestionTimeout = time.Second
	cfg.AnswerTimeout = time.Second
	return cfg
}

var segment = types.Segment{Index: 0, Text: "func Add(a, b int) int { return a + b }", End: 39}

func TestClientQuestions(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(t)
	backend.EXPECT().Init(gomock.Any()).Return(nil).Times(1)
	backend.EXPECT().Questions(gomock.Any(), generation.QuestionRequest{
		Content:     segment.Text,
		Count:       2,
		Temperature: 0.7,
	}).Return(&generation.QuestionResponse{Questions: []string{
		"1. What does Add return for two ints?",
		"2. Is Add safe against integer overflow?",
		"3. Why is Add not generic over numeric types?",
	}}, nil).Times(2)

	client := generation.NewClient(backend, testConfig(), nil)
	assert.Equal(t, generation.StateUninitialized, client.State())

	qs, err := client.Questions(ctx, segment, 39)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"What does Add return for two ints?",
		"Is Add safe against integer overflow?",
	}, qs)
	assert.Equal(t, generation.StateReady, client.State())

	// Init runs only once
	_, err = client.Questions(ctx, segment, 39)
	require.NoError(t, err)
}

func TestClientEmptyQuestionsIsValid(t *testing.T) {
	backend := newMockBackend(t)
	backend.EXPECT().Init(gomock.Any()).Return(nil)
	backend.EXPECT().Questions(gomock.Any(), gomock.Any()).Return(&generation.QuestionResponse{}, nil)

	client := generation.NewClient(backend, testConfig(), nil)
	qs, err := client.Questions(context.Background(), segment, 39)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestClientAnswer(t *testing.T) {
	backend := newMockBackend(t)
	backend.EXPECT().Init(gomock.Any()).Return(nil)
	backend.EXPECT().Answer(gomock.Any(), generation.AnswerRequest{
		Context:   segment.Text,
		Question:  "What does Add return?",
		MaxTokens: 1024,
	}).Return(&generation.AnswerResponse{Answer: " The sum of a and b. "}, nil)

	client := generation.NewClient(backend, testConfig(), nil)
	answer, err := client.Answer(context.Background(), segment, "What does Add return?", 39)
	require.NoError(t, err)
	assert.Equal(t, "The sum of a and b.", answer)
}

func TestClientEmptyAnswerIsPermanent(t *testing.T) {
	backend := newMockBackend(t)
	backend.EXPECT().Init(gomock.Any()).Return(nil)
	backend.EXPECT().Answer(gomock.Any(), gomock.Any()).Return(&generation.AnswerResponse{Answer: "  "}, nil)

	client := generation.NewClient(backend, testConfig(), nil)
	_, err := client.Answer(context.Background(), segment, "What does Add return?", 39)
	require.Error(t, err)
	assert.True(t, generation.IsPermanent(err))
}

func TestClientTimeoutIsTransient(t *testing.T) {
	backend := newMockBackend(t)
	backend.EXPECT().Init(gomock.Any()).Return(nil)
	backend.EXPECT().Answer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req generation.AnswerRequest) (*generation.AnswerResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	cfg := testConfig()
	cfg.AnswerTimeout = 20 * time.Millisecond
	client := generation.NewClient(backend, cfg, nil)

	_, err := client.Answer(context.Background(), segment, "What does Add return?", 39)
	require.Error(t, err)
	assert.True(t, generation.IsTransient(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestClientCallerCancelIsNotClassified(t *testing.T) {
	backend := newMockBackend(t)
	backend.EXPECT().Init(gomock.Any()).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	backend.EXPECT().Questions(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req generation.QuestionRequest) (*generation.QuestionResponse, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		})

	client := generation.NewClient(backend, testConfig(), nil)
	_, err := client.Questions(ctx, segment, 39)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, generation.IsTransient(err))
	assert.False(t, generation.IsPermanent(err))
}

func TestClientInitFailure(t *testing.T) {
	backend := newMockBackend(t)
	gomock.InOrder(
		backend.EXPECT().Init(gomock.Any()).Return(generation.Transient("init", errors.New("connection refused"))),
		backend.EXPECT().Init(gomock.Any()).Return(nil),
	)
	backend.EXPECT().Questions(gomock.Any(), gomock.Any()).Return(&generation.QuestionResponse{}, nil)

	client := generation.NewClient(backend, testConfig(), nil)

	_, err := client.Questions(context.Background(), segment, 39)
	require.Error(t, err)
	assert.True(t, generation.IsTransient(err))
	assert.Equal(t, generation.StateUninitialized, client.State())

	_, err = client.Questions(context.Background(), segment, 39)
	require.NoError(t, err)
}

func TestClientUnclassifiedBackendError(t *testing.T) {
	backend := newMockBackend(t)
	backend.EXPECT().Init(gomock.Any()).Return(nil)
	backend.EXPECT().Questions(gomock.Any(), gomock.Any()).Return(nil, errors.New("unsupported content"))

	client := generation.NewClient(backend, testConfig(), nil)
	_, err := client.Questions(context.Background(), segment, 39)
	require.Error(t, err)
	assert.True(t, generation.IsPermanent(err))
}

func TestClientRejectsEmptyInput(t *testing.T) {
	backend := newMockBackend(t)
	client := generation.NewClient(backend, testConfig(), nil)

	_, err := client.Questions(context.Background(), types.Segment{Text: "  \n"}, 3)
	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
	assert.True(t, generation.IsPermanent(err))

	_, err = client.Answer(context.Background(), segment, " ", 39)
	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
}

func TestClientModelLabel(t *testing.T) {
	backend := newMockBackend(t)

	client := generation.NewClient(backend, testConfig(), nil)
	assert.Equal(t, "mock-model", client.ModelLabel())

	cfg := testConfig()
	cfg.ModelLabel = "qa-v1"
	client = generation.NewClient(backend, cfg, nil)
	assert.Equal(t, "qa-v1", client.ModelLabel())
}

func TestScaledTimeout(t *testing.T) {
	base := 300 * time.Second

	assert.Equal(t, base, generation.ScaledTimeout(base, 0))
	assert.Equal(t, base, generation.ScaledTimeout(base, 512<<10))
	assert.Equal(t, 600*time.Second, generation.ScaledTimeout(base, 4<<20))
	assert.Equal(t, generation.MaxPhaseTimeout, generation.ScaledTimeout(base, 1<<40))
}

func TestNewBackend(t *testing.T) {
	b, err := generation.NewBackend(generation.BackendConfig{Backend: "LOCAL"})
	require.NoError(t, err)
	assert.Equal(t, generation.BackendLocal, b.Name())

	b, err = generation.NewBackend(generation.BackendConfig{Backend: "local", QuestionCacheSize: 16})
	require.NoError(t, err)
	_, ok := b.(*generation.CachedBackend)
	assert.True(t, ok)

	_, err = generation.NewBackend(generation.BackendConfig{Backend: "gpt-cloud"})
	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
}
