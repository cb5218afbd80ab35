package capture

import (
	"fmt"
	"time"

	"firestige.xyz/xsocket/pkg/datalink"
	"firestige.xyz/xsocket/pkg/packet"
	"firestige.xyz/xsocket/pkg/socket"
)

// LinkType names the first header of the frames a Source returns.
type LinkType int

const (
	LinkTypeEthernet LinkType = iota
	LinkTypeIP
)

// Source delivers raw frames to the listener. ReadFrame returns an error
// matching socket.ErrTimeout when no frame arrived within the read timeout.
// The returned slice stays valid after the next call.
type Source interface {
	ReadFrame() ([]byte, time.Time, error)
	LinkType() LinkType
	Close() error
}

// KernelStats is implemented by sources that can report kernel drops.
type KernelStats interface {
	KernelDrops() uint64
}

// SourceFactory opens the Source for a validated set of options.
type SourceFactory func(ifi datalink.Interface, opts Options) (Source, error)

// OpenSource is the default SourceFactory. It dispatches on Options.Engine.
func OpenSource(ifi datalink.Interface, opts Options) (Source, error) {
	switch opts.Engine {
	case EngineSocket, "":
		return openSocketSource(ifi, opts)
	case EngineAfpacket:
		return openAfpacketSource(ifi, opts)
	case EngineRaw:
		return openRawSource(opts)
	}
	return nil, fmt.Errorf("%w: unknown engine %q", ErrInvalidOptions, opts.Engine)
}

// socketSource reads whole frames from a DataLinkSocket.
type socketSource struct {
	sock *socket.DataLinkSocket
}

func openSocketSource(ifi datalink.Interface, opts Options) (Source, error) {
	sockOpts := []socket.Option{
		socket.WithReadTimeout(opts.ReadTimeout),
		socket.WithSnapLen(opts.SnapLen),
	}
	prog, err := opts.kernelProgram()
	if err != nil {
		return nil, err
	}
	if prog != nil {
		sockOpts = append(sockOpts, socket.WithFilter(prog))
	}
	sock, err := socket.NewDataLinkSocket(ifi, opts.Promiscuous, sockOpts...)
	if err != nil {
		return nil, err
	}
	return &socketSource{sock: sock}, nil
}

func (s *socketSource) ReadFrame() ([]byte, time.Time, error) {
	b, err := s.sock.Receive()
	return b, time.Now(), err
}

func (s *socketSource) LinkType() LinkType { return LinkTypeEthernet }

func (s *socketSource) Close() error { return s.sock.Close() }

func decodeFrame(lt LinkType, data []byte) (packet.PacketFrame, error) {
	if lt == LinkTypeIP {
		return packet.DecodeIPFrame(data)
	}
	return packet.DecodeEthernetFrame(data)
}
