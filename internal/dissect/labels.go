// Package dissect annotates captured frames with application-layer labels.
package dissect

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"firestige.xyz/xsocket/pkg/packet"
)

// Labels represents key-value metadata extracted from a frame payload.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelDNSID      = "dns.id"
	LabelDNSQR      = "dns.qr"      // "query" or "response"
	LabelDNSOpcode  = "dns.opcode"  // QUERY, NOTIFY, ...
	LabelDNSRcode   = "dns.rcode"   // NOERROR, NXDOMAIN, ...
	LabelDNSQName   = "dns.qname"   // First question name, fully qualified
	LabelDNSQType   = "dns.qtype"   // First question type, e.g. "AAAA"
	LabelDNSAnswers = "dns.answers" // Number of answer records (decimal)

	LabelDHCPMessageType   = "dhcp.message_type"
	LabelDHCPTransactionID = "dhcp.xid" // hex, 0xXXXXXXXX
	LabelDHCPClientMAC     = "dhcp.client_mac"
	LabelDHCPYourIP        = "dhcp.your_ip"
)

var dnsPorts = map[uint16]bool{53: true, 5353: true}

// Label returns labels for every application protocol recognised in f.
// It returns nil when nothing was recognised.
func Label(f *packet.PacketFrame) Labels {
	labels := make(Labels)
	switch {
	case f.Udp != nil && (dnsPorts[f.Udp.SrcPort] || dnsPorts[f.Udp.DstPort]):
		dnsLabels(labels, f.Udp.Payload)
	case f.Tcp != nil && (dnsPorts[f.Tcp.SrcPort] || dnsPorts[f.Tcp.DstPort]):
		// DNS over TCP carries a two byte length prefix.
		if p := f.Tcp.Payload; len(p) > 2 {
			if n := int(binary.BigEndian.Uint16(p)); n <= len(p)-2 {
				dnsLabels(labels, p[2:2+n])
			}
		}
	}
	if f.Dhcp != nil {
		dhcpLabels(labels, f.Dhcp)
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
}

func dnsLabels(labels Labels, payload []byte) {
	var msg dns.Msg
	if err := msg.Unpack(payload); err != nil {
		return
	}
	labels[LabelDNSID] = strconv.Itoa(int(msg.Id))
	if msg.Response {
		labels[LabelDNSQR] = "response"
	} else {
		labels[LabelDNSQR] = "query"
	}
	labels[LabelDNSOpcode] = opcodeName(msg.Opcode)
	labels[LabelDNSRcode] = rcodeName(msg.Rcode)
	if len(msg.Question) > 0 {
		q := msg.Question[0]
		labels[LabelDNSQName] = strings.ToLower(q.Name)
		labels[LabelDNSQType] = dns.Type(q.Qtype).String()
	}
	labels[LabelDNSAnswers] = strconv.Itoa(len(msg.Answer))
}

func opcodeName(op int) string {
	if s, ok := dns.OpcodeToString[op]; ok {
		return s
	}
	return strconv.Itoa(op)
}

func rcodeName(rc int) string {
	if s, ok := dns.RcodeToString[rc]; ok {
		return s
	}
	return strconv.Itoa(rc)
}

func dhcpLabels(labels Labels, d *packet.DhcpPacket) {
	if mt, ok := d.MessageType(); ok {
		labels[LabelDHCPMessageType] = mt.String()
	}
	labels[LabelDHCPTransactionID] = "0x" + strconv.FormatUint(uint64(d.TransactionID), 16)
	if len(d.ClientHardwareAddr) > 0 {
		labels[LabelDHCPClientMAC] = d.ClientHardwareAddr.String()
	}
	if d.YourIP.IsValid() && !d.YourIP.IsUnspecified() {
		labels[LabelDHCPYourIP] = d.YourIP.String()
	}
}
