//go:build linux && cgo

package capture

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/xsocket/internal/log"
	"firestige.xyz/xsocket/pkg/datalink"
	"firestige.xyz/xsocket/pkg/socket"
)

// afpacketSource reads from a TPACKET_V3 ring. Only the goroutine calling
// ReadFrame touches the ring, and Close must not race it.
type afpacketSource struct {
	handle *afpacket.TPacket
}

func openAfpacketSource(ifi datalink.Interface, opts Options) (Source, error) {
	g, err := computeRing(opts.RingSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if opts.Promiscuous {
		log.GetLogger().WithField("interface", ifi.Name).
			Warn("afpacket engine does not switch the interface to promiscuous mode")
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(ifi.Name),
		afpacket.OptFrameSize(g.frameSize),
		afpacket.OptBlockSize(g.blockSize),
		afpacket.OptNumBlocks(g.numBlocks),
		afpacket.OptPollTimeout(opts.ReadTimeout),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
		afpacket.SocketRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: afpacket %s: %v", socket.ErrOpen, ifi.Name, err)
	}

	prog, err := opts.kernelProgram()
	if err == nil && prog != nil {
		err = handle.SetBPF(prog)
	}
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("afpacket %s: set filter: %w", ifi.Name, err)
	}
	return &afpacketSource{handle: handle}, nil
}

func (s *afpacketSource) ReadFrame() ([]byte, time.Time, error) {
	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) {
			return nil, time.Time{}, socket.ErrTimeout
		}
		return nil, time.Time{}, err
	}
	// data points into the ring and is reused by the next read.
	out := make([]byte, len(data))
	copy(out, data)
	return out, ci.Timestamp, nil
}

func (s *afpacketSource) LinkType() LinkType { return LinkTypeEthernet }

func (s *afpacketSource) KernelDrops() uint64 {
	_, v3, err := s.handle.SocketStats()
	if err != nil {
		return 0
	}
	return uint64(v3.Drops())
}

func (s *afpacketSource) Close() error {
	s.handle.Close()
	return nil
}
