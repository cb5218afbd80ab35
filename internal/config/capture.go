package config

import (
	"fmt"
	"net/netip"
	"time"

	"firestige.xyz/xsocket/pkg/capture"
	"firestige.xyz/xsocket/pkg/packet"
)

// CaptureConfig is the `capture` section. Ether types and IP protocols
// accept names ("ipv4", "tcp") or numbers ("0x0800", "6").
type CaptureConfig struct {
	Interface        string        `mapstructure:"interface" yaml:"interface"`
	InterfaceIndex   uint32        `mapstructure:"interface_index" yaml:"interface_index"`
	SrcIPs           []string      `mapstructure:"src_ips" yaml:"src_ips"`
	DstIPs           []string      `mapstructure:"dst_ips" yaml:"dst_ips"`
	SrcPorts         []int         `mapstructure:"src_ports" yaml:"src_ports"`
	DstPorts         []int         `mapstructure:"dst_ports" yaml:"dst_ports"`
	EtherTypes       []string      `mapstructure:"ether_types" yaml:"ether_types"`
	IPProtocols      []string      `mapstructure:"ip_protocols" yaml:"ip_protocols"`
	Duration         time.Duration `mapstructure:"duration" yaml:"-"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout" yaml:"-"`
	Promiscuous      bool          `mapstructure:"promiscuous" yaml:"promiscuous"`
	Store            bool          `mapstructure:"store" yaml:"store"`
	StoreLimit       int           `mapstructure:"store_limit" yaml:"store_limit"`
	StopOnStoreLimit bool          `mapstructure:"stop_on_store_limit" yaml:"stop_on_store_limit"`
	ReceiveUndefined bool          `mapstructure:"receive_undefined" yaml:"receive_undefined"`
	Engine           string        `mapstructure:"engine" yaml:"engine"`
	KernelFilter     bool          `mapstructure:"kernel_filter" yaml:"kernel_filter"`
	BPFExpression    string        `mapstructure:"bpf_expression" yaml:"bpf_expression"`
	ChannelCapacity  int           `mapstructure:"channel_capacity" yaml:"channel_capacity"`
	SnapLen          int           `mapstructure:"snap_len" yaml:"snap_len"`
	RingSizeMB       int           `mapstructure:"ring_size_mb" yaml:"ring_size_mb"`
}

// MarshalYAML renders durations as strings such as "100ms".
func (c CaptureConfig) MarshalYAML() (interface{}, error) {
	type plain CaptureConfig
	return struct {
		plain       `yaml:",inline"`
		Duration    string `yaml:"duration"`
		ReadTimeout string `yaml:"read_timeout"`
	}{plain(c), c.Duration.String(), c.ReadTimeout.String()}, nil
}

// Options parses the section into validated capture options.
func (c CaptureConfig) Options() (capture.Options, error) {
	opts := capture.Options{
		InterfaceIndex:   c.InterfaceIndex,
		InterfaceName:    c.Interface,
		SrcIPs:           capture.NewSet[netip.Addr](),
		DstIPs:           capture.NewSet[netip.Addr](),
		SrcPorts:         capture.NewSet[uint16](),
		DstPorts:         capture.NewSet[uint16](),
		EtherTypes:       capture.NewSet[packet.EtherType](),
		IPProtocols:      capture.NewSet[packet.IPProtocol](),
		Duration:         c.Duration,
		ReadTimeout:      c.ReadTimeout,
		Promiscuous:      c.Promiscuous,
		Store:            c.Store,
		StoreLimit:       c.StoreLimit,
		StopOnStoreLimit: c.StopOnStoreLimit,
		ReceiveUndefined: c.ReceiveUndefined,
		KernelFilter:     c.KernelFilter,
		BPFExpression:    c.BPFExpression,
		ChannelCapacity:  c.ChannelCapacity,
		SnapLen:          c.SnapLen,
		RingSizeMB:       c.RingSizeMB,
	}

	engine, err := capture.ParseEngine(c.Engine)
	if err != nil {
		return capture.Options{}, err
	}
	opts.Engine = engine

	if err := parseAddrs(opts.SrcIPs, "src_ips", c.SrcIPs); err != nil {
		return capture.Options{}, err
	}
	if err := parseAddrs(opts.DstIPs, "dst_ips", c.DstIPs); err != nil {
		return capture.Options{}, err
	}
	if err := parsePorts(opts.SrcPorts, "src_ports", c.SrcPorts); err != nil {
		return capture.Options{}, err
	}
	if err := parsePorts(opts.DstPorts, "dst_ports", c.DstPorts); err != nil {
		return capture.Options{}, err
	}
	for _, s := range c.EtherTypes {
		et, err := packet.ParseEtherType(s)
		if err != nil {
			return capture.Options{}, fmt.Errorf("ether_types: %w", err)
		}
		opts.EtherTypes.Add(et)
	}
	for _, s := range c.IPProtocols {
		p, err := packet.ParseIPProtocol(s)
		if err != nil {
			return capture.Options{}, fmt.Errorf("ip_protocols: %w", err)
		}
		opts.IPProtocols.Add(p)
	}

	return opts.Validate()
}

func parseAddrs(dst capture.Set[netip.Addr], key string, values []string) error {
	for _, s := range values {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		dst.Add(a)
	}
	return nil
}

func parsePorts(dst capture.Set[uint16], key string, values []int) error {
	for _, p := range values {
		if p < 0 || p > 65535 {
			return fmt.Errorf("%s: port %d out of range", key, p)
		}
		dst.Add(uint16(p))
	}
	return nil
}
