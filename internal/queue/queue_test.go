package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, AttendanceEvent) error {
	f.calls++
	return errors.New("broker down")
}

func TestAsync_SwallowsErrors(t *testing.T) {
	next := &failingNotifier{}
	a := NewAsync(next, zap.NewNop(), 0)

	err := a.Notify(context.Background(), AttendanceEvent{Type: EventCheckedIn, BusinessID: 1})
	require.NoError(t, err)
	a.Wait()
	assert.Equal(t, 1, next.calls)
}

func TestAsync_DeliversToNext(t *testing.T) {
	rec := &Recorder{}
	a := NewAsync(rec, nil, 0)
	for i := 0; i < 3; i++ {
		_ = a.Notify(context.Background(), AttendanceEvent{Type: EventNoShow, BusinessID: 1, ReservationID: uint64(i + 1)})
	}
	a.Wait()
	assert.Len(t, rec.Events(), 3)
}

func TestHandleMessage_AppendsLine(t *testing.T) {
	dir := t.TempDir()
	body, err := json.Marshal(AttendanceEvent{
		Type:               EventCheckedIn,
		BusinessID:         3,
		ReservationID:      9,
		ExpectedGuestCount: 4,
		ScanCount:          1,
		Method:             "scan",
		ReservedAt:         "2025-11-04T20:00:00Z",
		OccurredAt:         "2025-11-04T20:05:00Z",
	})
	require.NoError(t, err)

	require.NoError(t, handleMessage(dir, body))
	require.NoError(t, handleMessage(dir, body))

	data, err := os.ReadFile(filepath.Join(dir, "attendance.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "attendance.checked_in | business_id=3 | reservation_id=9")
	assert.Equal(t, 2, countLines(string(data)))
}

func TestHandleMessage_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, handleMessage(dir, []byte("{not json")))
	assert.Error(t, handleMessage(dir, []byte(`{"type":"attendance.no_show"}`)))
}

func countLines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}
