package metrics

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFunctionsDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordContextAssembly("withinBudget", 10*time.Millisecond)
		RecordBreakerTrip("summarization")
		RecordCallbackFailure("on_message_added")
		RecordCallbackDisabled("on_message_added")
		SetVectorStoreEntries("memory", 42)
	})
}

func TestNewExporterServesMetrics(t *testing.T) {
	e := NewExporter(":0")
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatmemory_")
}

func TestExporterRegistryIsAccessible(t *testing.T) {
	e := NewExporter(":0")
	require.NotNil(t, e.Registry())
}

func TestShutdownBeforeStartIsNoOp(t *testing.T) {
	e := NewExporter(":0")
	assert.NoError(t, e.Shutdown(context.Background()))
}
