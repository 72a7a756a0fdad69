package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	published  []TaskPublished
	enrollment []EnrollmentChanged
	err        error
}

func (h *recordingHandler) HandleTaskPublished(_ context.Context, event TaskPublished) error {
	h.published = append(h.published, event)
	return h.err
}

func (h *recordingHandler) HandleEnrollmentChanged(_ context.Context, event EnrollmentChanged) error {
	h.enrollment = append(h.enrollment, event)
	return h.err
}

func TestInProcessDispatcherDeliversToHandler(t *testing.T) {
	handler := &recordingHandler{}
	dispatcher := NewInProcessDispatcher(handler)

	publish := TaskPublished{TaskID: 1, ClassID: 2, EmittedAt: time.Now()}
	require.NoError(t, dispatcher.DispatchTaskPublished(context.Background(), publish))
	require.Len(t, handler.published, 1)
	require.Equal(t, publish.TaskID, handler.published[0].TaskID)

	change := EnrollmentChanged{StudentID: 3, ClassID: 2, ResultingStatus: "active"}
	require.NoError(t, dispatcher.DispatchEnrollmentChanged(context.Background(), change))
	require.Len(t, handler.enrollment, 1)
	require.Equal(t, change.StudentID, handler.enrollment[0].StudentID)
}

func TestInProcessDispatcherPropagatesHandlerErrors(t *testing.T) {
	boom := errors.New("boom")
	dispatcher := NewInProcessDispatcher(&recordingHandler{err: boom})

	err := dispatcher.DispatchTaskPublished(context.Background(), TaskPublished{TaskID: 1, ClassID: 2})
	require.ErrorIs(t, err, boom)
}
