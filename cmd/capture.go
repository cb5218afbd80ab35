package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/xsocket/internal/config"
	"firestige.xyz/xsocket/internal/log"
	"firestige.xyz/xsocket/internal/metrics"
	"firestige.xyz/xsocket/pkg/capture"
)

var (
	captureCount  int
	statsInterval time.Duration
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and decode frames on an interface",
	Long: `Capture frames on an interface, decode them and print one line per frame.

Flags override the capture section of the config file. Filter flags take
comma separated values; every non-empty filter must match.`,
	Example: `  xsocket capture -i eth0 --proto tcp --dst-port 80,443
  xsocket capture -i eth0 --engine afpacket --kernel-filter --ether-type ipv4 --count 100`,
	RunE: runCapture,
}

func init() {
	f := captureCmd.Flags()
	f.StringP("interface", "i", "", "interface name")
	f.String("engine", "", "capture engine (socket, afpacket, raw)")
	f.StringSlice("src-ip", nil, "source IP addresses to keep")
	f.StringSlice("dst-ip", nil, "destination IP addresses to keep")
	f.IntSlice("src-port", nil, "source ports to keep")
	f.IntSlice("dst-port", nil, "destination ports to keep")
	f.StringSlice("proto", nil, "IP protocols to keep (tcp, udp, icmp, 47, ...)")
	f.StringSlice("ether-type", nil, "ether types to keep (ipv4, arp, 0x86dd, ...)")
	f.Duration("duration", 0, "stop after this long (0 for no limit)")
	f.Duration("read-timeout", 0, "per-read timeout bounding stop latency")
	f.Bool("promisc", false, "put the interface in promiscuous mode")
	f.Bool("receive-undefined", false, "also print frames without a known upper layer")
	f.Bool("kernel-filter", false, "push the ether type and protocol filter into the kernel")
	f.String("bpf", "", "tcpdump style kernel filter expression")
	f.Int("store-limit", 0, "retain the first N frames and stop once full")
	f.Bool("metrics", false, "serve Prometheus metrics while capturing")
	f.IntVarP(&captureCount, "count", "n", 0, "stop after printing N frames")
	f.DurationVar(&statsInterval, "stats-interval", 0, "log capture rates at this interval (0 to disable)")
}

// applyCaptureFlags copies every flag the user set into cfg.
func applyCaptureFlags(cmd *cobra.Command, cfg *config.GlobalConfig) error {
	f := cmd.Flags()
	c := &cfg.Capture
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("interface", func() (e error) { c.Interface, e = f.GetString("interface"); return })
	set("engine", func() (e error) { c.Engine, e = f.GetString("engine"); return })
	set("src-ip", func() (e error) { c.SrcIPs, e = f.GetStringSlice("src-ip"); return })
	set("dst-ip", func() (e error) { c.DstIPs, e = f.GetStringSlice("dst-ip"); return })
	set("src-port", func() (e error) { c.SrcPorts, e = f.GetIntSlice("src-port"); return })
	set("dst-port", func() (e error) { c.DstPorts, e = f.GetIntSlice("dst-port"); return })
	set("proto", func() (e error) { c.IPProtocols, e = f.GetStringSlice("proto"); return })
	set("ether-type", func() (e error) { c.EtherTypes, e = f.GetStringSlice("ether-type"); return })
	set("duration", func() (e error) { c.Duration, e = f.GetDuration("duration"); return })
	set("read-timeout", func() (e error) { c.ReadTimeout, e = f.GetDuration("read-timeout"); return })
	set("promisc", func() (e error) { c.Promiscuous, e = f.GetBool("promisc"); return })
	set("receive-undefined", func() (e error) { c.ReceiveUndefined, e = f.GetBool("receive-undefined"); return })
	set("kernel-filter", func() (e error) { c.KernelFilter, e = f.GetBool("kernel-filter"); return })
	set("bpf", func() (e error) { c.BPFExpression, e = f.GetString("bpf"); return })
	set("store-limit", func() error {
		n, e := f.GetInt("store-limit")
		c.Store, c.StoreLimit, c.StopOnStoreLimit = n > 0, n, n > 0
		return e
	})
	set("metrics", func() (e error) { cfg.Metrics.Enabled, e = f.GetBool("metrics"); return })
	return err
}

func runCapture(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyCaptureFlags(cmd, cfg); err != nil {
		return err
	}
	opts, err := cfg.Capture.Options()
	if err != nil {
		return err
	}

	l, err := capture.NewListener(opts, capture.WithLogger(log.GetLogger()))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Stop(context.Background())
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Start(gctx) })
	g.Go(func() error {
		printFrames(cmd.OutOrStdout(), l, captureCount)
		return nil
	})
	if statsInterval > 0 {
		logger := log.GetLogger().WithField("interface", opts.InterfaceName)
		g.Go(func() error {
			capture.MonitorStats(gctx, l, statsInterval, func(st capture.Stats, r capture.Rates) {
				logger.WithFields(map[string]interface{}{
					"received":  st.Received,
					"dropped":   st.Dropped(),
					"queue":     st.QueueLength,
					"in_pps":    int64(r.Inbound),
					"out_pps":   int64(r.Published),
					"drop_rate": fmt.Sprintf("%.2f%%", st.DropRate()),
				}).Info("capture stats")
			})
			return nil
		})
	}
	err = g.Wait()

	capture.WriteReport(cmd.ErrOrStderr(), opts.InterfaceName, time.Since(start), l.Stats())
	return err
}

// printFrames writes frames until the listener closes its channel. Once
// limit frames are printed the listener is stopped and the rest drained.
func printFrames(w io.Writer, l *capture.Listener, limit int) {
	printed := 0
	for f := range l.Frames() {
		if limit > 0 && printed >= limit {
			continue
		}
		fmt.Fprintln(w, formatFrame(&f))
		printed++
		if limit > 0 && printed == limit {
			l.Stop()
		}
	}
}
