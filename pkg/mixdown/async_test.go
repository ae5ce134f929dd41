package mixdown_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/singalong/pkg/audio/wav"
	"github.com/MrWong99/singalong/pkg/mixdown"
)

func TestSubmit(t *testing.T) {
	t.Parallel()

	dec := fakeDecoder{"b": mono(22050, make([]float32, 100)), "v": mono(22050, make([]float32, 100))}
	e := newEngine(dec)

	select {
	case res, ok := <-e.Submit(context.Background(), mixdown.Request{Backing: []byte("b"), Vocal: []byte("v")}):
		if !ok {
			t.Fatal("channel closed without a result")
		}
		if res.Err != nil {
			t.Fatalf("Result.Err = %v", res.Err)
		}
		if _, err := wav.ReadHeader(res.WAV); err != nil {
			t.Errorf("ReadHeader: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestSubmit_FailureThenClose(t *testing.T) {
	t.Parallel()

	ch := newEngine(fakeDecoder{}).Submit(context.Background(), mixdown.Request{Backing: []byte("b"), Vocal: []byte("v")})
	res := <-ch
	if !errors.Is(res.Err, mixdown.ErrDecode) || res.WAV != nil {
		t.Errorf("Result = %+v, want decode failure without bytes", res)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after the result")
	}
}

func TestMixAsync(t *testing.T) {
	t.Parallel()

	dec := fakeDecoder{"b": mono(22050, make([]float32, 100)), "v": mono(22050, make([]float32, 100))}
	e := newEngine(dec)

	type outcome struct {
		wav []byte
		err error
	}
	tests := []struct {
		name    string
		req     mixdown.Request
		wantErr bool
	}{
		{"success", mixdown.Request{Backing: []byte("b"), Vocal: []byte("v")}, false},
		{"failure", mixdown.Request{Backing: []byte("b"), Vocal: []byte("nope")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			done := make(chan outcome, 2)
			e.MixAsync(context.Background(), tt.req,
				func(b []byte) { done <- outcome{wav: b} },
				func(err error) { done <- outcome{err: err} },
			)
			select {
			case o := <-done:
				if (o.err != nil) != tt.wantErr {
					t.Errorf("err = %v, wantErr %v", o.err, tt.wantErr)
				}
				if !tt.wantErr && len(o.wav) <= wav.HeaderSize {
					t.Errorf("got %d bytes", len(o.wav))
				}
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for callback")
			}
			select {
			case o := <-done:
				t.Errorf("second callback fired: %+v", o)
			case <-time.After(50 * time.Millisecond):
			}
		})
	}
}
