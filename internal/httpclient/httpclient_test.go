package httpclient

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestBrotliTransportDecodes(t *testing.T) {
	payload := []byte(`{"hello":"compressed world"}`)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); ae != "gzip, br" {
			t.Errorf("Accept-Encoding = %q", ae)
		}
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write(payload)
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer ts.Close()

	resp, err := Default().Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body = %q, want %q", body, payload)
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Fatal("Content-Encoding header survived decoding")
	}
}

func TestBrotliTransportPassesPlainThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain"))
	}))
	defer ts.Close()
	resp, err := Default().Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "plain" {
		t.Fatalf("body = %q", body)
	}
}

func TestWithTimeoutSharesTransport(t *testing.T) {
	c := WithTimeout(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %v", c.Timeout)
	}
	if c.Transport != Default().Transport {
		t.Fatal("WithTimeout built a new transport")
	}
}

func TestHostSemaphoreBoundsConcurrency(t *testing.T) {
	const limit = 3
	sem := NewHostSemaphore(limit)
	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := sem.Acquire("http://one.example:8080/some/path?q=1")
			defer release()
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	if p := atomic.LoadInt32(&peak); p > limit {
		t.Fatalf("peak concurrency %d exceeded limit %d", p, limit)
	}
}

func TestHostSemaphoreSeparatesHosts(t *testing.T) {
	sem := NewHostSemaphore(1)
	releaseA := sem.Acquire("http://a.example")
	done := make(chan struct{})
	go func() {
		release := sem.Acquire("http://b.example")
		release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different host blocked on another host's slot")
	}
	releaseA()
}
