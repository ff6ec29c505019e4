package octio

import (
	"net"
	"os"
	"runtime"
	"syscall"
	"testing"
)

// unixSocketPair returns a connected pair of *net.UnixConn backed by a real
// AF_UNIX socketpair(2), so both ends expose a syscall-level file
// descriptor suitable for splice(2).
func unixSocketPair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	f0 := newFileConn(t, fds[0])
	f1 := newFileConn(t, fds[1])
	return f0, f1
}

func newFileConn(t *testing.T, fd int) *net.UnixConn {
	t.Helper()
	f := os.NewFile(uintptr(fd), "socketpair")
	conn, err := net.FileConn(f)
	if err != nil {
		t.Fatalf("FileConn: %v", err)
	}
	f.Close()
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		t.Fatalf("FileConn did not return a *net.UnixConn")
	}
	return uc
}

func TestSpliceConnsLoopback(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("splice(2) is Linux-only")
	}

	a, b := unixSocketPair(t)
	defer a.Close()
	defer b.Close()

	payload := []byte("splice-me-through-the-kernel")
	writerDone := make(chan error, 1)
	go func() {
		// SpliceConns copies until EOF, so the write side is shut down once
		// the payload is sent.
		_, err := a.Write(payload)
		if err == nil {
			err = a.CloseWrite()
		}
		writerDone <- err
	}()

	reader, writer := unixSocketPair(t)
	defer reader.Close()
	defer writer.Close()

	srcFd, err := connFd(b)
	if err != nil {
		t.Fatalf("connFd(b): %v", err)
	}
	dstFd, err := connFd(writer)
	if err != nil {
		t.Fatalf("connFd(writer): %v", err)
	}

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(payload))
		n, _ := reader.Read(buf)
		readDone <- buf[:n]
	}()

	n, err := SpliceConns(dstFd, srcFd)
	if err != nil {
		t.Fatalf("SpliceConns: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("SpliceConns moved %d bytes, want %d", n, len(payload))
	}
	if err := <-writerDone; err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := <-readDone
	if string(got) != string(payload) {
		t.Fatalf("spliced payload = %q, want %q", got, payload)
	}
}

func TestTrySpliceFallsBackForNonUnixEndpoints(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 64, SoftCap: 8})
	in := NewInput(pool, &sliceSource{data: []byte("hi")})
	out := NewBuilder(pool)

	_, ok, err := TrySplice(out, in)
	if err != nil {
		t.Fatalf("TrySplice: %v", err)
	}
	if ok {
		t.Fatalf("TrySplice should report ok=false when neither end is a UnixConn adapter")
	}
}
