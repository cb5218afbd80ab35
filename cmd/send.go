package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/xsocket/internal/log"
	"firestige.xyz/xsocket/pkg/datalink"
	"firestige.xyz/xsocket/pkg/packet"
	"firestige.xyz/xsocket/pkg/socket"
)

// probeParams are the user inputs of one crafted frame.
type probeParams struct {
	Protocol   string
	SrcIP      netip.Addr
	DstIP      netip.Addr
	SrcPort    uint16
	DstPort    uint16
	DstMAC     net.HardwareAddr
	GatewayMAC net.HardwareAddr
	Flags      string
	Payload    []byte
}

var sendFlags struct {
	iface      string
	srcIP      string
	dstIP      string
	srcPort    uint16
	dstPort    uint16
	dstMAC     string
	gatewayMAC string
	flags      string
	payload    string
	wait       time.Duration
}

var sendCmd = &cobra.Command{
	Use:       "send tcp|udp|icmp",
	Short:     "Craft one frame and send it on an interface",
	Long:      `Build an Ethernet frame carrying a TCP, UDP or ICMP probe and write it on an interface.`,
	Example:   `  xsocket send tcp -i eth0 --dst-ip 192.0.2.10 --dst-port 443 --gateway-mac 02:00:00:00:00:01 --flags syn --wait 2s`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"tcp", "udp", "icmp"},
	RunE:      runSend,
}

func init() {
	f := sendCmd.Flags()
	f.StringVarP(&sendFlags.iface, "interface", "i", "", "interface name (defaults to capture.interface)")
	f.StringVar(&sendFlags.srcIP, "src-ip", "", "source address (defaults to the interface address)")
	f.StringVar(&sendFlags.dstIP, "dst-ip", "", "destination address")
	f.Uint16Var(&sendFlags.srcPort, "src-port", 40000, "source port")
	f.Uint16Var(&sendFlags.dstPort, "dst-port", 0, "destination port")
	f.StringVar(&sendFlags.dstMAC, "dst-mac", "", "destination MAC for on-link hosts")
	f.StringVar(&sendFlags.gatewayMAC, "gateway-mac", "", "next-hop MAC for off-link hosts")
	f.StringVar(&sendFlags.flags, "flags", "syn", "TCP flags, e.g. syn or syn|ack")
	f.StringVar(&sendFlags.payload, "payload", "", "payload bytes as text")
	f.DurationVar(&sendFlags.wait, "wait", 0, "wait this long for a reply and print it")
	_ = sendCmd.MarkFlagRequired("dst-ip")
}

func runSend(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	name := sendFlags.iface
	if name == "" {
		name = cfg.Capture.Interface
	}
	ifi, err := datalink.ByName(name)
	if err != nil {
		return err
	}

	p := probeParams{
		Protocol: args[0],
		SrcPort:  sendFlags.srcPort,
		DstPort:  sendFlags.dstPort,
		Flags:    sendFlags.flags,
		Payload:  []byte(sendFlags.payload),
	}
	if p.DstIP, err = netip.ParseAddr(sendFlags.dstIP); err != nil {
		return fmt.Errorf("dst-ip: %w", err)
	}
	if sendFlags.srcIP != "" {
		if p.SrcIP, err = netip.ParseAddr(sendFlags.srcIP); err != nil {
			return fmt.Errorf("src-ip: %w", err)
		}
	}
	if sendFlags.dstMAC != "" {
		if p.DstMAC, err = net.ParseMAC(sendFlags.dstMAC); err != nil {
			return fmt.Errorf("dst-mac: %w", err)
		}
	}
	if sendFlags.gatewayMAC != "" {
		if p.GatewayMAC, err = net.ParseMAC(sendFlags.gatewayMAC); err != nil {
			return fmt.Errorf("gateway-mac: %w", err)
		}
	}

	pb, err := buildProbe(ifi, p)
	if err != nil {
		return err
	}

	timeout := socket.DefaultReadTimeout
	if sendFlags.wait > 0 && sendFlags.wait < timeout {
		timeout = sendFlags.wait
	}
	s, err := socket.NewDataLinkSocket(ifi, false, socket.WithReadTimeout(timeout))
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Send(pb)
	if err != nil {
		return err
	}
	log.GetLogger().WithField("interface", ifi.Name).
		WithField("bytes", n).
		Infof("sent %s frame to %s", pb.IPProtocol.ID(), pb.DstIP)

	if sendFlags.wait <= 0 {
		return nil
	}
	reply, err := awaitReply(s, pb, time.Now().Add(sendFlags.wait))
	if err != nil {
		return err
	}
	fmt.Println(formatFrame(&reply))
	return nil
}

// buildProbe assembles an Ethernet frame for p. Off-link destinations are
// addressed to the gateway MAC.
func buildProbe(ifi datalink.Interface, p probeParams) (*packet.PacketBuilder, error) {
	dst := p.DstIP.Unmap()
	src := p.SrcIP.Unmap()
	if !src.IsValid() {
		var ok bool
		if dst.Is4() {
			src, ok = ifi.PrimaryIPv4()
		} else {
			src, ok = ifi.PrimaryIPv6()
		}
		if !ok {
			return nil, fmt.Errorf("interface %s has no address for %s", ifi.Name, dst)
		}
	}
	if src.Is4() != dst.Is4() {
		return nil, fmt.Errorf("address family mismatch: %s > %s", src, dst)
	}

	if p.GatewayMAC != nil {
		ifi.Gateway = &datalink.Gateway{MacAddr: p.GatewayMAC}
	}
	dstMAC := p.DstMAC
	if dstMAC == nil && !ifi.OnLink(dst) && ifi.Gateway != nil {
		dstMAC = ifi.Gateway.MacAddr
	}
	if dstMAC == nil {
		return nil, errors.New("destination MAC unknown: set --dst-mac or --gateway-mac")
	}

	pb := packet.NewPacketBuilder()
	pb.SrcIP, pb.DstIP = src, dst
	pb.SrcPort, pb.DstPort = p.SrcPort, p.DstPort
	pb.Payload = p.Payload

	srcAP := netip.AddrPortFrom(src, p.SrcPort)
	dstAP := netip.AddrPortFrom(dst, p.DstPort)
	var proto packet.IPProtocol
	switch strings.ToLower(p.Protocol) {
	case "tcp":
		flags, err := packet.ParseTcpFlags(p.Flags)
		if err != nil {
			return nil, err
		}
		tcp := packet.NewTcpBuilder(srcAP, dstAP)
		tcp.Flags = flags
		tcp.Options = nil
		for _, f := range flags {
			if f == packet.TcpFlagSyn {
				tcp.Options = packet.DefaultSynOptions()
			}
		}
		pb.SetTcp(tcp)
		proto = packet.IPProtocolTcp
	case "udp":
		pb.SetUdp(packet.NewUdpBuilder(srcAP, dstAP))
		proto = packet.IPProtocolUdp
	case "icmp":
		if dst.Is4() {
			icmp := packet.NewIcmpBuilder()
			icmp.Source, icmp.Destination = src, dst
			pb.SetIcmp(icmp)
			proto = packet.IPProtocolIcmp
		} else {
			pb.SetIcmpv6(packet.NewIcmpv6Builder(src, dst))
			proto = packet.IPProtocolIcmpv6
		}
	default:
		return nil, fmt.Errorf("unsupported protocol %q", p.Protocol)
	}
	pb.IPProtocol = proto

	etherType := packet.EtherTypeIPv4
	if dst.Is4() {
		pb.SetIpv4(packet.NewIpv4Builder(src, dst, proto))
	} else {
		etherType = packet.EtherTypeIPv6
		pb.SetIpv6(packet.NewIpv6Builder(src, dst, proto))
	}
	pb.SetEthernet(packet.EthernetBuilder{SrcMAC: ifi.MacAddr, DstMAC: dstMAC, EtherType: etherType})
	return pb, nil
}

// frameReceiver is the receive half of a DataLinkSocket.
type frameReceiver interface {
	Receive() ([]byte, error)
}

// awaitReply reads frames until one answers req or the deadline passes.
func awaitReply(r frameReceiver, req *packet.PacketBuilder, deadline time.Time) (packet.PacketFrame, error) {
	for time.Now().Before(deadline) {
		b, err := r.Receive()
		if socket.IsTimeout(err) {
			continue
		}
		if err != nil {
			return packet.PacketFrame{}, err
		}
		f, err := packet.DecodeEthernetFrame(b)
		if err != nil {
			continue
		}
		if isReply(&f, req) {
			f.CaptureInfo.Timestamp = time.Now()
			f.CaptureInfo.CaptureLen = len(b)
			return f, nil
		}
	}
	return packet.PacketFrame{}, fmt.Errorf("no reply from %s: %w", req.DstIP, socket.ErrTimeout)
}

// isReply reports whether f travels back from the probe destination on
// the same protocol and, for TCP and UDP, the swapped ports.
func isReply(f *packet.PacketFrame, req *packet.PacketBuilder) bool {
	src, ok := f.SrcIP()
	if !ok || src != req.DstIP {
		return false
	}
	if dst, _ := f.DstIP(); dst != req.SrcIP {
		return false
	}
	switch req.IPProtocol {
	case packet.IPProtocolTcp:
		return f.Tcp != nil && f.Tcp.SrcPort == req.DstPort && f.Tcp.DstPort == req.SrcPort
	case packet.IPProtocolUdp:
		return f.Udp != nil && f.Udp.SrcPort == req.DstPort && f.Udp.DstPort == req.SrcPort
	case packet.IPProtocolIcmp:
		// Port unreachable and friends come back as ICMP too.
		return f.Icmp != nil && f.Icmp.Type != packet.IcmpTypeEchoRequest
	case packet.IPProtocolIcmpv6:
		return f.Icmpv6 != nil && f.Icmpv6.Type == packet.Icmpv6TypeEchoReply
	}
	return false
}
