package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/shared/id"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSpanNesting(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	child, childCtx := tracer.StartSpan(ctx, "child")

	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Empty(t, root.ParentID)
	assert.Equal(t, child.SpanID, GetSpanID(childCtx))
	assert.Equal(t, root.TraceID, GetTraceID(childCtx))
}

func TestInjectExtract(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")
	header := http.Header{}
	Inject(ctx, header)

	assert.Equal(t, span.TraceID.String(), header.Get(TraceHeader))

	extracted := Extract(context.Background(), header)
	assert.Equal(t, span.TraceID, GetTraceID(extracted))
	assert.Equal(t, span.SpanID, GetSpanID(extracted))
}

func TestExtractIgnoresMalformed(t *testing.T) {
	header := http.Header{}
	header.Set(TraceHeader, "garbage")
	header.Set(SpanHeader, id.NewTraceID().String())

	ctx := Extract(context.Background(), header)
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
	assert.Nil(t, Fields(ctx))
}

func TestCloseDrainsSpans(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("test", zap.New(core))

	ok, _ := tracer.StartSpan(context.Background(), "ok")
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "failed")
	failed.SetError(errors.New("boom"))
	failed.Finish()
	tracer.Submit(failed)

	tracer.Close()

	assert.Equal(t, 1, logs.FilterMessage("span completed").Len())
	errLogs := logs.FilterMessage("span completed with error").All()
	require.Len(t, errLogs, 1)
	assert.Equal(t, int64(http.StatusInternalServerError), errLogs[0].ContextMap()["status"])

	// Submitting after close is a no-op
	tracer.Submit(ok)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("test", nil)
	defer tracer.Close()

	var seen id.TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/ping", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	incoming := id.NewTraceID()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceHeader, incoming.String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, incoming, seen)
	assert.Equal(t, incoming.String(), rec.Header().Get(TraceHeader))
	assert.NotEmpty(t, rec.Header().Get(SpanHeader))
}
