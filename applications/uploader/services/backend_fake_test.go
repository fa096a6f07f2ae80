package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/donmikel/mediaupload/applications/uploader/domain"
)

// fakeBackend records the calls made by the pipeline and serves scripted status answers.
// It fails the test when a terminal status would change or a key is polled before its write.
type fakeBackend struct {
	t *testing.T

	mu        sync.Mutex
	calls     []string
	issued    int
	intent    *domain.UploadIntent
	intentErr error
	writeErr  error
	statusErr error
	scripts   map[string][]domain.StatusResult
	written   map[string][]byte
	terminal  map[string]domain.StatusResult
	polls     map[string]int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		t:        t,
		scripts:  map[string][]domain.StatusResult{},
		written:  map[string][]byte{},
		terminal: map[string]domain.StatusResult{},
		polls:    map[string]int{},
	}
}

func (f *fakeBackend) RequestIntent(ctx context.Context, purpose domain.Purpose, contentType string) (domain.UploadIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "intent")
	if f.intentErr != nil {
		return domain.UploadIntent{}, f.intentErr
	}
	if f.intent != nil {
		return *f.intent, nil
	}

	f.issued++
	key := fmt.Sprintf("k%d", f.issued)
	return domain.UploadIntent{
		Key:         key,
		Destination: "https://store/" + key,
		Headers:     http.Header{"Content-Type": []string{contentType}},
	}, nil
}

func (f *fakeBackend) Write(ctx context.Context, intent domain.UploadIntent, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "upload")
	if f.writeErr != nil {
		return f.writeErr
	}
	if _, ok := f.written[intent.Key]; ok {
		f.t.Errorf("intent %s used twice", intent.Key)
	}
	f.written[intent.Key] = data

	return nil
}

func (f *fakeBackend) GetStatus(ctx context.Context, key string) (domain.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "poll")
	if f.statusErr != nil {
		return domain.StatusResult{}, f.statusErr
	}
	if _, ok := f.written[key]; !ok {
		f.t.Errorf("key %s polled before its bytes were written", key)
	}

	script, ok := f.scripts[key]
	if !ok {
		script = []domain.StatusResult{
			{Status: domain.StatusWaiting},
			{Status: domain.StatusSucceeded, URL: "https://cdn/" + key},
		}
	}

	n := f.polls[key]
	f.polls[key] = n + 1
	if n >= len(script) {
		n = len(script) - 1
	}
	result := script[n]

	if prev, ok := f.terminal[key]; ok && prev != result {
		f.t.Errorf("terminal status of %s changed from %v to %v", key, prev, result)
	}
	if result.Status.Terminal() {
		f.terminal[key] = result
	}

	return result, nil
}

func (f *fakeBackend) script(key string, results ...domain.StatusResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[key] = results
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) body(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[key]
}

var errNetwork = errors.New("connection reset by peer")
