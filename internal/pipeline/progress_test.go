package pipeline

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cb := NewConsoleProgressCallback(&buf, "cutout ").WithWidth(10).WithUpdateInterval(time.Second)
	cb.now = clock.now

	cb.OnStart(4)
	assert.Equal(t, "cutout 0/4 images\n", buf.String())

	buf.Reset()
	clock.t = clock.t.Add(time.Second)
	cb.OnProgress(1, 4)
	assert.Equal(t, "\rcutout [##--------] 1/4 (25%) 1.0 img/s eta 3s", buf.String())

	buf.Reset()
	cb.OnProgress(2, 4)
	assert.Empty(t, buf.String(), "throttled")

	clock.t = clock.t.Add(time.Second)
	cb.OnProgress(4, 4)
	assert.Equal(t, "\rcutout [##########] 4/4 (100%) 2.0 img/s", buf.String())

	buf.Reset()
	cb.OnError(2, errors.New("bad file"))
	assert.Equal(t, "\ncutout image 2 failed: bad file\n", buf.String())

	buf.Reset()
	cb.OnComplete()
	assert.Equal(t, "\ncutout done in 2s\n", buf.String())
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cb := NewLogProgressCallback(logger).WithInterval(2)

	cb.OnStart(5)
	for i := 1; i <= 5; i++ {
		cb.OnProgress(i, 5)
	}
	cb.OnError(3, errors.New("decode failed"))
	cb.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "batch started")
	assert.Equal(t, 3, strings.Count(out, "batch progress"), "at 2, 4 and 5")
	assert.Contains(t, out, "decode failed")
	assert.Contains(t, out, "batch completed")
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var cb ProgressCallback = MultiProgressCallback{a, b, NoOpProgressCallback{}}
	cb.OnStart(2)
	cb.OnProgress(1, 2)
	cb.OnError(0, errors.New("x"))
	cb.OnComplete()
	for _, r := range []*recorder{a, b} {
		assert.Equal(t, 2, r.total)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, []int{0}, r.failed)
		assert.True(t, r.completed)
	}
}
