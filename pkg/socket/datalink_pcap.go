//go:build !linux

package socket

import (
	"errors"

	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/xsocket/pkg/datalink"
)

// pcapConn is a libpcap live handle.
type pcapConn struct {
	handle *pcap.Handle
}

func openFrameConn(ifi datalink.Interface, promiscuous bool, cfg config) (frameConn, error) {
	timeout := cfg.readTimeout
	if timeout <= 0 {
		timeout = pcap.BlockForever
	}
	handle, err := pcap.OpenLive(ifi.Name, int32(cfg.snapLen), promiscuous, timeout)
	if err != nil {
		return nil, err
	}
	c := &pcapConn{handle: handle}
	if cfg.filter != nil {
		if err := c.setFilter(cfg.filter); err != nil {
			handle.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *pcapConn) readFrame(b []byte) (int, error) {
	data, _, err := c.handle.ReadPacketData()
	if err != nil {
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			return 0, ErrTimeout
		}
		return 0, err
	}
	return copy(b, data), nil
}

// writeFrame reports the whole frame as written: libpcap sends it in one
// call or fails.
func (c *pcapConn) writeFrame(b []byte) (int, error) {
	if err := c.handle.WritePacketData(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *pcapConn) setFilter(prog []bpf.RawInstruction) error {
	if prog == nil {
		prog = acceptAll
	}
	insns := make([]pcap.BPFInstruction, len(prog))
	for i, ins := range prog {
		insns[i] = pcap.BPFInstruction{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return c.handle.SetBPFInstructionFilter(insns)
}

func (c *pcapConn) close() error {
	c.handle.Close()
	return nil
}
