package capture

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"firestige.xyz/xsocket/pkg/socket"
)

const rawBufferSize = 65535

type rawFrame struct {
	data []byte
	ts   time.Time
}

// rawSource merges one IPv4 raw socket per protocol. Frames start at the
// IPv4 header.
type rawSource struct {
	socks   []*socket.ListenerSocket
	timeout time.Duration
	frames  chan rawFrame
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func openRawSource(opts Options) (Source, error) {
	protocols := opts.IPProtocols.Values()
	slices.Sort(protocols)

	s := &rawSource{
		timeout: opts.ReadTimeout,
		frames:  make(chan rawFrame, 256),
		errs:    make(chan error, len(protocols)),
		done:    make(chan struct{}),
	}
	for _, p := range protocols {
		sock, err := socket.NewListenerSocket(socket.SocketOption{
			IPVersion:  socket.IPv4,
			SocketType: socket.Raw,
			Protocol:   p,
		}, opts.ReadTimeout)
		if err != nil {
			for _, open := range s.socks {
				_ = open.Close()
			}
			return nil, err
		}
		s.socks = append(s.socks, sock)
	}
	for _, sock := range s.socks {
		s.wg.Add(1)
		go s.read(sock)
	}
	return s, nil
}

func (s *rawSource) read(sock *socket.ListenerSocket) {
	defer s.wg.Done()
	buf := make([]byte, rawBufferSize)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		n, _, err := sock.ReceiveFrom(buf)
		if err != nil {
			if socket.IsTimeout(err) {
				continue
			}
			if errors.Is(err, socket.ErrClosed) {
				return
			}
			select {
			case s.errs <- fmt.Errorf("raw %s: %w", sock.Option().Protocol.ID(), err):
			default:
			}
			continue
		}
		f := rawFrame{data: append([]byte(nil), buf[:n]...), ts: time.Now()}
		select {
		case s.frames <- f:
		case <-s.done:
			return
		}
	}
}

func (s *rawSource) ReadFrame() ([]byte, time.Time, error) {
	t := time.NewTimer(s.timeout)
	defer t.Stop()
	select {
	case f := <-s.frames:
		return f.data, f.ts, nil
	case err := <-s.errs:
		return nil, time.Time{}, err
	case <-s.done:
		return nil, time.Time{}, socket.ErrClosed
	case <-t.C:
		return nil, time.Time{}, socket.ErrTimeout
	}
}

func (s *rawSource) LinkType() LinkType { return LinkTypeIP }

func (s *rawSource) Close() error {
	var errs []error
	s.once.Do(func() {
		// Readers leave within one read timeout; the descriptors are
		// released only after that so no read races a reused fd.
		close(s.done)
		s.wg.Wait()
		for _, sock := range s.socks {
			if err := sock.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

