package octio

import (
	"io"
	"net"
	"os"
	"runtime"
	"syscall"
)

// maxSpliceChunk is the maximum number of bytes moved by a single
// splice(2) call.
const maxSpliceChunk = 4 * 1024 * 1024

// UnixConnSource wraps a *net.UnixConn as a FillSource, and additionally
// exposes the descriptor splice needs. Most callers only need it to
// construct an Input over a Unix socket; TrySplice uses fd() to hand both
// descriptors to SpliceConns, bypassing the chunk pool entirely when both
// ends of a copy are sockets.
type UnixConnSource struct {
	conn *net.UnixConn
}

// NewUnixConnSource adapts conn into a FillSource/SourceCloser pair.
func NewUnixConnSource(conn *net.UnixConn) *UnixConnSource {
	return &UnixConnSource{conn: conn}
}

func (s *UnixConnSource) Fill(dst []byte) (int, error) {
	n, err := s.conn.Read(dst)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (s *UnixConnSource) CloseSource() error { return s.conn.Close() }

func (s *UnixConnSource) fd() (int, error) { return connFd(s.conn) }

// UnixConnSink wraps a *net.UnixConn as a FlushSink/DestinationCloser pair.
type UnixConnSink struct {
	conn *net.UnixConn
}

// NewUnixConnSink adapts conn into a FlushSink/DestinationCloser pair.
func NewUnixConnSink(conn *net.UnixConn) *UnixConnSink {
	return &UnixConnSink{conn: conn}
}

func (s *UnixConnSink) Flush(data []byte) error {
	_, err := s.conn.Write(data)
	return err
}

func (s *UnixConnSink) CloseDestination() error { return s.conn.Close() }

func (s *UnixConnSink) fd() (int, error) { return connFd(s.conn) }

func makePipe() (*os.File, *os.File, error) { return os.Pipe() }

func connFd(conn *net.UnixConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(f uintptr) { fd = int(f) })
	if err != nil {
		return -1, err
	}
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

// TrySplice attempts to move bytes directly between in's source and out's
// sink using the kernel splice(2) path, entirely bypassing the chunk pool,
// when in was constructed over a UnixConnSource and out over a
// UnixConnSink. It reports ok=false — not an error —
// whenever that precondition doesn't hold, so callers always have a
// normal fallback: the usual in.ReadAvailableTo(out) / out.Flush() chunked
// path.
func TrySplice(out *Output, in *Input) (n int64, ok bool, err error) {
	src, isUnixSrc := in.src.(*UnixConnSource)
	dst, isUnixDst := out.sink.(*UnixConnSink)
	if !isUnixSrc || !isUnixDst {
		return 0, false, nil
	}
	srcFd, err := src.fd()
	if err != nil {
		return 0, true, err
	}
	dstFd, err := dst.fd()
	if err != nil {
		return 0, true, err
	}
	n, err = SpliceConns(dstFd, srcFd)
	return n, true, err
}

// SpliceConns moves bytes from srcFd to dstFd with splice(2), trying a
// direct fd-to-fd splice first and falling back to an intermediate pipe
// when the kernel rejects the direct path (EINVAL — common when one side
// isn't itself a pipe and the kernel can't set up the page-stealing fast
// path directly). On non-Linux platforms platformSplice always reports
// syscall.ENOTSUP and callers are expected to fall back to ordinary
// chunked I/O.
func SpliceConns(dstFd, srcFd int) (int64, error) {
	if runtime.GOOS != "linux" {
		return 0, syscall.ENOTSUP
	}
	n, err := spliceDirect(srcFd, dstFd)
	if err == syscall.EINVAL {
		return spliceViaPipe(srcFd, dstFd)
	}
	return n, err
}

func spliceDirect(srcFd, dstFd int) (int64, error) {
	if srcFd < 0 || dstFd < 0 {
		return 0, syscall.EBADF
	}
	if srcFd == dstFd {
		return 0, syscall.EINVAL
	}

	var total int64
	for {
		n, err := platformSplice(srcFd, nil, dstFd, nil, maxSpliceChunk, spliceFMove)
		if n > 0 {
			total += int64(n)
		}
		if err != nil {
			if err == syscall.EINTR || err == syscall.EAGAIN {
				continue
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func spliceViaPipe(srcFd, dstFd int) (int64, error) {
	if srcFd < 0 || dstFd < 0 {
		return 0, syscall.EBADF
	}
	if srcFd == dstFd {
		return 0, syscall.EINVAL
	}

	pipeR, pipeW, err := makePipe()
	if err != nil {
		return 0, err
	}
	defer pipeR.Close()
	defer pipeW.Close()

	var total int64
	for {
		bytesIn, err := platformSplice(srcFd, nil, int(pipeW.Fd()), nil, maxSpliceChunk, spliceFMove)
		if err != nil {
			if err == syscall.EINTR || err == syscall.EAGAIN {
				continue
			}
			return total, err
		}
		if bytesIn == 0 {
			break
		}

		drained := 0
		for drained < bytesIn {
			n, err := platformSplice(int(pipeR.Fd()), nil, dstFd, nil, bytesIn-drained, spliceFMove)
			if err != nil {
				if err == syscall.EINTR || err == syscall.EAGAIN {
					continue
				}
				return total, err
			}
			if n == 0 {
				return total, io.ErrShortWrite
			}
			drained += n
		}
		total += int64(bytesIn)
	}
	return total, nil
}
