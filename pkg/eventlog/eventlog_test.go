package eventlog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	records []Record
	fail    bool
}

func (f *fakeOutput) Emit(rec Record) error {
	if f.fail {
		return errAlwaysFails
	}
	f.records = append(f.records, rec)
	return nil
}

var errAlwaysFails = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "always fails" }

func TestSinkFanOutSurvivesOneFailure(t *testing.T) {
	good := &fakeOutput{}
	bad := &fakeOutput{fail: true}
	sink := NewSink(nil, bad, good)

	sink.Emit(Record{SourceName: "reader", Level: Warning, Message: "hi"})

	require.Len(t, good.records, 1)
	require.Empty(t, bad.records)
}

func TestThresholdFiltersByLevel(t *testing.T) {
	inner := &fakeOutput{}
	th := &Thresholded{Min: Warning, Max: 0, Out: inner}

	require.NoError(t, th.Emit(Record{Level: Info}))
	require.NoError(t, th.Emit(Record{Level: Error}))
	require.Len(t, inner.records, 1)
	require.Equal(t, Error, inner.records[0].Level)
}

func TestThresholdUpperBoundExclusive(t *testing.T) {
	inner := &fakeOutput{}
	th := &Thresholded{Min: Debug, Max: Error, Out: inner}

	require.NoError(t, th.Emit(Record{Level: Warning}))
	require.NoError(t, th.Emit(Record{Level: Error}))
	require.Len(t, inner.records, 1)
	require.Equal(t, Warning, inner.records[0].Level)
}

func TestRotatingFileOutputRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")

	out, err := NewRotatingFileOutput(path, 64, 2)
	require.NoError(t, err)
	defer out.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, out.Emit(Record{
			SourceName: "reader",
			Level:      Info,
			Message:    "a reasonably long message to force rotation soon",
			EmittedAt:  time.Now(),
		}))
	}

	require.FileExists(t, path)
	require.FileExists(t, path+".1")
}

func TestTimeRotatingFileOutputWritesCurrentDay(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "events")

	out, err := NewTimeRotatingFileOutput(prefix)
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, out.Emit(Record{SourceName: "reader", Level: Info, Message: "m", EmittedAt: time.Now()}))
	require.FileExists(t, out.fileName(time.Now().UTC().Format("2006-01-02")))
}

func TestChatOutputPostsJSON(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := NewChatOutput(srv.URL)
	require.NoError(t, out.Emit(Record{SourceName: "reader", Level: Error, Message: "boom"}))
	require.Contains(t, got.Text, "boom")
}

func TestBuildMessageIncludesSubjectAndBody(t *testing.T) {
	msg := buildMessage("station@example.com", []string{"oncall@example.com"}, Record{
		SourceName: "reader",
		Level:      Error,
		Message:    "device unreachable",
		Context:    map[string]interface{}{"uid": "AAA"},
		EmittedAt:  time.Now(),
	})
	require.Contains(t, string(msg), "Subject: [ERROR] reader")
	require.Contains(t, string(msg), "device unreachable")
}
