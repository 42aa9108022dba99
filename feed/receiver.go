package feed

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"cosmossdk.io/log"
)

const (
	// readTimeout bounds each blocking read so the loop can observe shutdown.
	readTimeout = 500 * time.Millisecond

	// maxDatagram is larger than the largest protocol message.
	maxDatagram = 4096

	// recvSockBuf asks the kernel for a deeper receive queue; bursts on the
	// market data feed overflow the default on busy symbols.
	recvSockBuf = 1 << 20

	statsInterval = 10 * time.Second
)

// Processor consumes raw datagrams from a Receiver.
type Processor interface {
	Process(b []byte)
	Stats() *Stats
}

// Receiver joins a UDP multicast group and pumps datagrams into a Processor.
type Receiver struct {
	name   string
	group  string
	bindIP string
	proc   Processor
	logger log.Logger

	conn   *net.UDPConn
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReceiver creates a receiver for one multicast group. group is
// "ip:port"; bindIP selects the joining interface.
func NewReceiver(name, group, bindIP string, proc Processor, logger log.Logger) *Receiver {
	return &Receiver{
		name:   name,
		group:  group,
		bindIP: bindIP,
		proc:   proc,
		logger: logger.With("module", "feed/receiver", "feed", name),
		stopCh: make(chan struct{}),
	}
}

// Start joins the group and spawns the read and stats loops.
func (r *Receiver) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", r.group)
	if err != nil {
		return fmt.Errorf("resolve group %s: %w", r.group, err)
	}

	conn, err := net.ListenMulticastUDP("udp4", interfaceForIP(r.bindIP), addr)
	if err != nil {
		return fmt.Errorf("join group %s: %w", r.group, err)
	}
	if err := conn.SetReadBuffer(recvSockBuf); err != nil {
		r.logger.Warn("could not grow receive buffer", "err", err)
	}
	r.conn = conn

	r.wg.Add(2)
	go r.readLoop(ctx)
	go r.statsLoop(ctx)

	r.logger.Info("joined multicast group", "group", r.group, "bind_ip", r.bindIP)
	return nil
}

// Stop closes the socket and joins both loops.
func (r *Receiver) Stop() error {
	close(r.stopCh)
	if r.conn != nil {
		r.conn.Close()
	}
	r.wg.Wait()
	r.logger.Info("receiver stopped")
	return nil
}

func (r *Receiver) readLoop(ctx context.Context) {
	defer r.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			r.logger.Error("set read deadline failed", "err", err)
			return
		}
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-r.stopCh:
				return
			default:
			}
			r.logger.Error("read failed", "err", err)
			continue
		}
		r.proc.Process(buf[:n])
	}
}

func (r *Receiver) statsLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			s := r.proc.Stats()
			r.logger.Info("feed stats",
				"packets", s.Packets.Load(),
				"bytes", s.Bytes.Load(),
				"dropped", s.Dropped.Load(),
				"gaps", s.Gaps.Load(),
			)
		}
	}
}

// interfaceForIP resolves the interface carrying addr so the group join
// happens where configured. Returns nil (system default) when unresolvable.
func interfaceForIP(addr string) *net.Interface {
	target := net.ParseIP(addr)
	if target == nil {
		return nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && ip.Equal(target) {
				return &ifaces[i]
			}
		}
	}
	return nil
}
