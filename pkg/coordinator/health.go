package coordinator

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"golang.org/x/sync/errgroup"

	"github.com/strangelove-ventures/fomc-oracle/pkg/metrics"
	"github.com/strangelove-ventures/fomc-oracle/pkg/participant"
)

const (
	pingInterval = 5 * time.Second
)

// HealthChecker tracks participant round trip times. Its results only order
// and prefilter the fan-out; quorum is decided by the responses themselves.
type HealthChecker struct {
	logger       cometlog.Logger
	participants []participant.Participant
	timeout      time.Duration

	rtt map[int]int64
	mu  sync.RWMutex
}

func NewHealthChecker(logger cometlog.Logger, participants []participant.Participant, timeout time.Duration) *HealthChecker {
	return &HealthChecker{
		logger:       logger,
		participants: participants,
		timeout:      timeout,
		rtt:          make(map[int]int64),
	}
}

// Start pings every participant on an interval until ctx is done.
func (hc *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		hc.CheckAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckAll pings every participant concurrently and returns the healthy ones
// in id order.
func (hc *HealthChecker) CheckAll(ctx context.Context) []participant.Participant {
	healthy := make([]bool, len(hc.participants))
	var eg errgroup.Group
	for i, p := range hc.participants {
		i, p := i, p
		eg.Go(func() error {
			healthy[i] = hc.updateRTT(ctx, p)
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]participant.Participant, 0, len(hc.participants))
	for i, p := range hc.participants {
		if healthy[i] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetID() < out[j].GetID() })
	return out
}

func (hc *HealthChecker) updateRTT(ctx context.Context, p participant.Participant) bool {
	rtt := int64(-1)
	defer func() {
		hc.mu.Lock()
		defer hc.mu.Unlock()
		hc.rtt[p.GetID()] = rtt
	}()

	label := strconv.Itoa(p.GetID())
	pingCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	res, err := p.Health(pingCtx)
	if err != nil {
		hc.logger.Debug("Participant health check failed", "participant", p.GetID(), "error", err)
		metrics.ParticipantHealthy.WithLabelValues(label).Set(0)
		return false
	}
	if !res.Healthy() || res.ParticipantID != p.GetID() {
		hc.logger.Info("Participant unhealthy",
			"participant", p.GetID(),
			"reported_id", res.ParticipantID,
			"share_loaded", res.ShareLoaded,
			"group_key_loaded", res.GroupKeyLoaded,
		)
		metrics.ParticipantHealthy.WithLabelValues(label).Set(0)
		return false
	}
	rtt = time.Since(start).Nanoseconds()
	metrics.ParticipantHealthy.WithLabelValues(label).Set(1)
	metrics.ParticipantRTT.WithLabelValues(label).Set(float64(rtt) / float64(time.Millisecond))
	return true
}

// Prefilter returns the healthy participants when at least threshold of them
// are healthy, and every participant otherwise.
func (hc *HealthChecker) Prefilter(ctx context.Context, threshold int) []participant.Participant {
	healthy := hc.CheckAll(ctx)
	if len(healthy) >= threshold {
		return healthy
	}
	hc.logger.Info("Fewer healthy participants than threshold, fanning out to all",
		"healthy", len(healthy),
		"threshold", threshold,
	)
	return hc.participants
}

// RTT returns the last successful round trip time of participant id.
func (hc *HealthChecker) RTT(id int) (time.Duration, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	rtt, ok := hc.rtt[id]
	if !ok || rtt < 0 {
		return 0, false
	}
	return time.Duration(rtt), true
}

// GetFastest returns the participants ordered by last measured RTT. Failed
// or unmeasured participants sort last.
func (hc *HealthChecker) GetFastest() []participant.Participant {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	fastest := make([]participant.Participant, len(hc.participants))
	copy(fastest, hc.participants)

	sort.SliceStable(fastest, func(i, j int) bool {
		rtt1, ok1 := hc.rtt[fastest[i].GetID()]
		rtt2, ok2 := hc.rtt[fastest[j].GetID()]
		if rtt1 == -1 || !ok1 {
			return false
		}
		if rtt2 == -1 || !ok2 {
			return true
		}
		return rtt1 < rtt2
	})

	return fastest
}
