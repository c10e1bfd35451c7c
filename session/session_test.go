/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package session_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/vultureproject/darwin-go/alert"
	"github.com/vultureproject/darwin-go/cache"
	"github.com/vultureproject/darwin-go/classifier"
	"github.com/vultureproject/darwin-go/flog"
	"github.com/vultureproject/darwin-go/fstats"
	"github.com/vultureproject/darwin-go/nextfilter"
	"github.com/vultureproject/darwin-go/session"
	"github.com/vultureproject/darwin-go/wire"
	"github.com/vultureproject/darwin-go/workpool"
)

type fakeTask struct {
	certitude uint16
	n         int
}

func (t fakeTask) Run(ctx context.Context) (classifier.Result, error) {
	n := t.n
	if n == 0 {
		n = wire.DefaultCertitudeListSize
	}
	certitudes := make([]uint16, n)
	for i := range certitudes {
		certitudes[i] = t.certitude
	}
	return classifier.Result{Certitudes: certitudes}, nil
}

type fakeFactory struct {
	certitude uint16
}

func (f *fakeFactory) Name() string                    { return "fake" }
func (f *fakeFactory) FilterCode() uint32               { return 42 }
func (f *fakeFactory) DefaultCertitude() uint16         { return 0 }
func (f *fakeFactory) Hash() classifier.HashFunc        { return nil }
func (f *fakeFactory) NewTask(in classifier.TaskInput) classifier.Task {
	return fakeTask{certitude: f.certitude, n: len(in.Entries)}
}

func testDeps(t *testing.T, certitude uint16) session.Deps {
	t.Helper()
	log, err := flog.New("test", "", flog.LevelDebug, true)
	if err != nil {
		t.Fatal(err)
	}
	return session.Deps{
		Factory:    &fakeFactory{certitude: certitude},
		Cache:      cache.New(0),
		Hash:       func(_ []json.RawMessage, rawBody []byte) uint64 { return cache.DefaultHash(rawBody) },
		AlertMgr:   alert.NewManager(log),
		Pool:       workpool.New(context.Background(), 2, 8),
		Counters:   fstats.New(),
		Log:        log,
		OutputType: session.OutputRaw,
		Threshold:  session.ResolveThreshold(80),
		MaxBody:    wire.MaxBody,
	}
}

func readFrame(t *testing.T, conn net.Conn) *wire.Header {
	t.Helper()
	h, _ := readFrameWithBody(t, conn)
	return h
}

func readFrameWithBody(t *testing.T, conn net.Conn) (*wire.Header, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, wire.HeaderLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read reply header: %v", err)
	}
	h, err := wire.ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse reply header: %v", err)
	}
	tail := make([]byte, h.TailLen())
	if len(tail) > 0 {
		if _, err := io.ReadFull(conn, tail); err != nil {
			t.Fatalf("read reply tail: %v", err)
		}
	}
	_, body, err := wire.ParseTail(h, tail)
	if err != nil {
		t.Fatalf("parse reply tail: %v", err)
	}
	return h, body
}

func TestSessionEmptyFrameUsesClassifierDefault(t *testing.T) {
	client, server := net.Pipe()
	deps := testDeps(t, 0)
	s := session.New(deps, server)
	go s.Serve()

	req := wire.EmitFrame(&wire.Header{ResponseMode: wire.ModeClientOnly}, nil, nil)
	if _, err := client.Write(req); err != nil {
		t.Fatal(err)
	}

	reply := readFrame(t, client)
	if reply.CertitudeCount != 1 || reply.FirstCertitude != 0 {
		t.Fatalf("reply = %+v, want certitude_count=1 certitude[0]=0", reply)
	}
	client.Close()
}

func TestSessionParseErrorRepliesWithErrorReturn(t *testing.T) {
	client, server := net.Pipe()
	deps := testDeps(t, 5)
	s := session.New(deps, server)
	go s.Serve()

	body := []byte("not-a-json-array")
	req := wire.EmitFrame(&wire.Header{ResponseMode: wire.ModeClientOnly, BodySize: uint32(len(body))}, nil, body)
	if _, err := client.Write(req); err != nil {
		t.Fatal(err)
	}

	reply, replyBody := readFrameWithBody(t, client)
	if reply.CertitudeCount != 1 || reply.FirstCertitude != wire.ErrorReturn {
		t.Fatalf("reply = %+v, want certitude[0]=%d", reply, wire.ErrorReturn)
	}
	var errBody struct {
		Error     string `json:"error"`
		ErrorCode int    `json:"error_code"`
	}
	if err := json.Unmarshal(replyBody, &errBody); err != nil {
		t.Fatalf("unmarshal error reply body: %v (body=%q)", err, replyBody)
	}
	if errBody.ErrorCode != 400 || errBody.Error == "" {
		t.Fatalf("error reply body = %+v, want error_code=400 and a non-empty error", errBody)
	}
	client.Close()
}

func TestSessionForwardOnlyDoesNotReplyToClient(t *testing.T) {
	fwdClient, fwdServer := net.Pipe()
	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, err := fwdServer.Read(buf)
		if err == nil {
			received <- buf[:n]
		}
	}()

	log, err := flog.New("test", "", flog.LevelDebug, true)
	if err != nil {
		t.Fatal(err)
	}
	dialed := false
	connector := nextfilter.New(nextfilter.Target{}, log, func() (net.Conn, error) {
		dialed = true
		return fwdClient, nil
	})
	go connector.Run()
	defer connector.Stop()
	_ = dialed

	deps := testDeps(t, 0)
	deps.Connector = connector

	client, server := net.Pipe()
	s := session.New(deps, server)
	go s.Serve()

	req := wire.EmitFrame(&wire.Header{ResponseMode: wire.ModeForwardOnly}, nil, nil)
	if _, err := client.Write(req); err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Fatal("forward-only session wrote a reply to the client")
	}

	select {
	case frame := <-received:
		h, err := wire.ParseHeader(frame[:wire.HeaderLen])
		if err != nil {
			t.Fatalf("parse forwarded header: %v", err)
		}
		if h.FilterCode != 42 {
			t.Fatalf("forwarded filter_code = %d, want 42", h.FilterCode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never reached next filter")
	}
	client.Close()
}
