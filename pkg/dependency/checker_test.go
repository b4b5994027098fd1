package dependency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/logging"
	"github.com/core-tools/hsu-watchad/pkg/logging/loggingtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockProbe is a mock implementation of Probe for testing
type MockProbe struct {
	mock.Mock
	name  string
	calls *[]string
}

func (m *MockProbe) Name() string {
	return m.name
}

func (m *MockProbe) Check(ctx context.Context) (bool, string) {
	*m.calls = append(*m.calls, m.name)
	args := m.Called(ctx)
	return args.Bool(0), args.String(1)
}

func newProbes(searchIndex, documentStore, messageQueue bool) (*MockProbe, *MockProbe, *MockProbe, *[]string) {
	calls := &[]string{}
	probe := func(name string, ok bool) *MockProbe {
		p := &MockProbe{name: name, calls: calls}
		p.On("Check", mock.Anything).Return(ok, name+" message").Maybe()
		return p
	}
	return probe("search-index", searchIndex), probe("document-store", documentStore), probe("message-queue", messageQueue), calls
}

func TestChecker_ShortCircuitsInFixedOrder(t *testing.T) {
	tests := []struct {
		name          string
		searchIndex   bool
		documentStore bool
		messageQueue  bool
		wantCalls     []string
		wantReadiness Readiness
	}{
		{
			name:          "all_ready",
			searchIndex:   true,
			documentStore: true,
			messageQueue:  true,
			wantCalls:     []string{"search-index", "document-store", "message-queue"},
			wantReadiness: Readiness{SearchIndexReady: true, DocumentStoreReady: true, MessageQueueReady: true},
		},
		{
			name:          "search_index_fails",
			searchIndex:   false,
			documentStore: true,
			messageQueue:  true,
			wantCalls:     []string{"search-index"},
			wantReadiness: Readiness{},
		},
		{
			name:          "document_store_fails",
			searchIndex:   true,
			documentStore: false,
			messageQueue:  true,
			wantCalls:     []string{"search-index", "document-store"},
			wantReadiness: Readiness{SearchIndexReady: true},
		},
		{
			name:          "message_queue_fails",
			searchIndex:   true,
			documentStore: true,
			messageQueue:  false,
			wantCalls:     []string{"search-index", "document-store", "message-queue"},
			wantReadiness: Readiness{SearchIndexReady: true, DocumentStoreReady: true},
		},
		{
			name:          "everything_fails",
			searchIndex:   false,
			documentStore: false,
			messageQueue:  false,
			wantCalls:     []string{"search-index"},
			wantReadiness: Readiness{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			si, ds, mq, calls := newProbes(tt.searchIndex, tt.documentStore, tt.messageQueue)
			checker := NewChecker(si, ds, mq, logging.NewNopLogger())

			readiness := checker.Check(context.Background())

			assert.Equal(t, tt.wantReadiness, readiness)
			assert.Equal(t, tt.wantCalls, *calls)
			assert.Equal(t, tt.searchIndex && tt.documentStore && tt.messageQueue, readiness.AllReady())
		})
	}
}

func TestChecker_CheckAllIsNotCached(t *testing.T) {
	calls := &[]string{}
	flaky := &MockProbe{name: "message-queue", calls: calls}
	flaky.On("Check", mock.Anything).Return(true, "up").Once()
	flaky.On("Check", mock.Anything).Return(false, "down").Once()
	si, ds, _, _ := newProbes(true, true, true)

	checker := NewChecker(si, ds, flaky, logging.NewNopLogger())

	assert.True(t, checker.CheckAll(context.Background()))
	assert.False(t, checker.CheckAll(context.Background()))
	flaky.AssertExpectations(t)
}

func TestChecker_LogsFailingProbe(t *testing.T) {
	recorder := loggingtest.NewRecorder()
	si, ds, mq, _ := newProbes(true, false, true)

	NewChecker(si, ds, mq, recorder).CheckAll(context.Background())

	assert.True(t, recorder.Contains(logging.LogLevelError, "probe: document-store"))
	assert.False(t, recorder.Contains(logging.LogLevelInfo, "successfully"))
}

type fakeInspector struct {
	installed bool
	err       error
}

func (f fakeInspector) TemplateInstalled(ctx context.Context) (bool, error) {
	if _, ok := ctx.Deadline(); !ok {
		return false, errors.New("probe must bound the call")
	}
	return f.installed, f.err
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func TestTemplateProbe(t *testing.T) {
	ok, _ := NewTemplateProbe(fakeInspector{installed: true}, time.Second).Check(context.Background())
	assert.True(t, ok)

	ok, message := NewTemplateProbe(fakeInspector{installed: false}, 0).Check(context.Background())
	assert.False(t, ok)
	assert.Contains(t, message, "run install first")

	ok, message = NewTemplateProbe(fakeInspector{err: errors.New("401")}, 0).Check(context.Background())
	assert.False(t, ok)
	assert.Contains(t, message, "401")
}

func TestPingProbe(t *testing.T) {
	probe := NewPingProbe("document-store", fakePinger{}, time.Second)
	assert.Equal(t, "document-store", probe.Name())
	ok, _ := probe.Check(context.Background())
	assert.True(t, ok)

	ok, message := NewPingProbe("document-store", fakePinger{err: errors.New("refused")}, time.Second).Check(context.Background())
	assert.False(t, ok)
	assert.Contains(t, message, "refused")
}

func TestNATSProbe_Unreachable(t *testing.T) {
	probe := NewNATSProbe(MessageQueueConfig{URL: "nats://127.0.0.1:1", Timeout: 200 * time.Millisecond})

	ok, message := probe.Check(context.Background())

	assert.False(t, ok)
	assert.Contains(t, message, "Message queue connection failed")
}
