package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// Stats is the process-wide envelope routing counter. The router and the
// signaling channel feed it; the periodic reporter surfaces it.
var Stats = &stats{}

type stats struct {
	DirectSent atomic.Int64 // envelopes sent over direct data channels
	RelaySent  atomic.Int64 // envelopes sent via the signaling channel
	Received   atomic.Int64 // inbound envelopes accepted (both paths)
	Dropped    atomic.Int64 // inbound envelopes dropped (foreign/malformed)
}

func (s *stats) AddDirectSent() { s.DirectSent.Add(1) }
func (s *stats) AddRelaySent()  { s.RelaySent.Add(1) }
func (s *stats) AddReceived()   { s.Received.Add(1) }
func (s *stats) AddDropped()    { s.Dropped.Add(1) }

// StartStatsReporter launches a goroutine that logs routing statistics every
// 10 seconds while there is traffic. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevDirect, prevRelay, prevRecv int64
		for {
			select {
			case <-ticker.C:
				direct := Stats.DirectSent.Load()
				relay := Stats.RelaySent.Load()
				recv := Stats.Received.Load()

				dDirect := direct - prevDirect
				dRelay := relay - prevRelay
				dRecv := recv - prevRecv

				if dDirect > 0 || dRelay > 0 || dRecv > 0 {
					pterm.DefaultLogger.Info(fmt.Sprintf(
						"Out: %3d direct %3d relayed | In: %3d | dropped total: %d",
						dDirect, dRelay, dRecv, Stats.Dropped.Load()))
				}

				prevDirect = direct
				prevRelay = relay
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}
