// Package metrics implements the Prometheus collector for a single lnd node
// and the exporter's self-monitoring metrics.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fsgrosa/lnd-exporter/pkg/cursor"
	"github.com/fsgrosa/lnd-exporter/pkg/lnd"
)

var (
	numPeersDesc = prometheus.NewDesc(
		"lnd_num_peers_total",
		"Number of peers connected to the lnd node.",
		nil, nil,
	)

	blockHeightDesc = prometheus.NewDesc(
		"lnd_block_height",
		"Best chain block height as seen by the lnd node.",
		nil, nil,
	)

	outgoingPaymentsDesc = prometheus.NewDesc(
		"lnd_outgoing_payments",
		"Number of outgoing payments observed since exporter start, by status.",
		[]string{"status"}, nil,
	)

	failureReasonsDesc = prometheus.NewDesc(
		"lnd_payment_failure_reasons",
		"Number of outgoing payments observed since exporter start, by failure reason.",
		[]string{"reason"}, nil,
	)

	channelBalanceDesc = prometheus.NewDesc(
		"lnd_channel_balance_total_sat",
		"Per-channel balance in satoshis, by balance category.",
		[]string{"chan_id", "active", "channel_point", "category"}, nil,
	)
)

// LndCollector implements prometheus.Collector against a single lnd node.
//
// A single mutex spans the whole collection cycle, so overlapping /metrics
// requests serialize: the shared RPC client and the payment cursor are only
// ever touched by one cycle at a time, and no caller can observe the cursor
// between its counts updating and its offset advancing.
type LndCollector struct {
	mu         sync.Mutex
	client     lnd.LightningClient
	cursor     cursor.Store
	rpcTimeout time.Duration // zero leaves RPCs unbounded
}

// NewLndCollector creates a collector for the given client and payment
// cursor. It fails if the enum label tables do not cover every variant the
// compiled lnrpc package knows.
//
// rpcTimeout bounds one collection cycle's RPC calls; zero disables the
// deadline, in which case a hung lnd node stalls this and every queued
// collection until the transport gives up.
func NewLndCollector(client lnd.LightningClient, cur cursor.Store, rpcTimeout time.Duration) (*LndCollector, error) {
	if err := validateLabelTables(); err != nil {
		return nil, err
	}
	return &LndCollector{
		client:     client,
		cursor:     cur,
		rpcTimeout: rpcTimeout,
	}, nil
}

// Describe sends the metric descriptors to the channel.
func (c *LndCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- numPeersDesc
	ch <- blockHeightDesc
	ch <- outgoingPaymentsDesc
	ch <- failureReasonsDesc
	ch <- channelBalanceDesc
}

// Collect runs one collection cycle: getinfo, listpayments, listchannels,
// in that order. A failed scrape logs its error, counts against the scrape
// error metric and contributes no series; the remaining scrapes still run.
func (c *LndCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	ctx := context.Background()
	if c.rpcTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.rpcTimeout)
		defer cancel()
	}

	for _, m := range c.scrapeGetInfo(ctx) {
		ch <- m
	}
	for _, m := range c.scrapeListPayments(ctx) {
		ch <- m
	}
	for _, m := range c.scrapeListChannels(ctx) {
		ch <- m
	}

	CursorIndexOffset.Set(float64(c.cursor.IndexOffset()))
	CollectDuration.Observe(time.Since(start).Seconds())
}

// scrapeGetInfo emits the peer count and block height gauges. Both are
// plain overwrites of whatever the node reports right now.
func (c *LndCollector) scrapeGetInfo(ctx context.Context) []prometheus.Metric {
	res, err := c.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		slog.Error("getinfo scrape failed", "error", err)
		ScrapeErrors.WithLabelValues("getinfo").Inc()
		return nil
	}

	out := make([]prometheus.Metric, 0, 2)

	m, err := prometheus.NewConstMetric(numPeersDesc, prometheus.GaugeValue, float64(res.NumPeers))
	if err != nil {
		slog.Error("failed to create num_peers metric", "error", err)
	} else {
		out = append(out, m)
	}

	m, err = prometheus.NewConstMetric(blockHeightDesc, prometheus.GaugeValue, float64(res.BlockHeight))
	if err != nil {
		slog.Error("failed to create block_height metric", "error", err)
	} else {
		out = append(out, m)
	}

	return out
}

// scrapeListPayments lists payments from the cursor's offset onwards
// (in-flight ones included), folds them into the cumulative tallies and
// emits the status and failure-reason gauge vectors rebuilt from the full
// tallies.
//
// lnd only advances last_index_offset past settled payments, so an
// in-flight payment can be listed again on a later cycle once it settles
// and be counted under both statuses. That matches the node's view of
// "payments observed" and is pinned by the test suite.
func (c *LndCollector) scrapeListPayments(ctx context.Context) []prometheus.Metric {
	res, err := c.client.ListPayments(ctx, &lnrpc.ListPaymentsRequest{
		IncludeIncomplete: true,
		IndexOffset:       c.cursor.IndexOffset(),
	})
	if err != nil {
		slog.Error("listpayments scrape failed", "error", err)
		ScrapeErrors.WithLabelValues("listpayments").Inc()
		return nil
	}

	c.cursor.Apply(res.Payments, res.LastIndexOffset)

	// Only persist after a successful scrape; a failed one leaves the
	// cursor, and therefore the snapshot, untouched.
	if ps, ok := c.cursor.(cursor.PersistentStore); ok {
		persistStart := time.Now()
		if err := ps.Persist(ctx); err != nil {
			slog.Error("failed to persist payment cursor", "error", err)
		} else {
			PersistDuration.Observe(time.Since(persistStart).Seconds())
		}
	}

	statusCounts := c.cursor.StatusCounts()
	reasonCounts := c.cursor.FailureReasonCounts()
	out := make([]prometheus.Metric, 0, len(statusCounts)+len(reasonCounts))

	for status, count := range statusCounts {
		label, err := paymentStatusLabel(status)
		if err != nil {
			slog.Error("payment status outside label table", "status", int32(status), "error", err)
			continue
		}
		m, err := prometheus.NewConstMetric(outgoingPaymentsDesc, prometheus.GaugeValue, float64(count), label)
		if err != nil {
			slog.Error("failed to create outgoing_payments metric", "error", err)
			continue
		}
		out = append(out, m)
	}

	for reason, count := range reasonCounts {
		label, err := failureReasonLabel(reason)
		if err != nil {
			slog.Error("payment failure reason outside label table", "reason", int32(reason), "error", err)
			continue
		}
		m, err := prometheus.NewConstMetric(failureReasonsDesc, prometheus.GaugeValue, float64(count), label)
		if err != nil {
			slog.Error("failed to create payment_failure_reasons metric", "error", err)
			continue
		}
		out = append(out, m)
	}

	return out
}

// scrapeListChannels emits three balance gauges per open channel. The
// series are rebuilt from scratch every cycle, so a channel that closes
// between polls simply disappears from the output.
func (c *LndCollector) scrapeListChannels(ctx context.Context) []prometheus.Metric {
	res, err := c.client.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		slog.Error("listchannels scrape failed", "error", err)
		ScrapeErrors.WithLabelValues("listchannels").Inc()
		return nil
	}

	out := make([]prometheus.Metric, 0, 3*len(res.Channels))
	for _, channel := range res.Channels {
		chanID := strconv.FormatUint(channel.ChanId, 10)
		active := strconv.FormatBool(channel.Active)

		balances := []struct {
			category string
			sat      int64
		}{
			{"local", channel.LocalBalance},
			{"remote", channel.RemoteBalance},
			{"unsettled", channel.UnsettledBalance},
		}
		for _, b := range balances {
			m, err := prometheus.NewConstMetric(
				channelBalanceDesc,
				prometheus.GaugeValue,
				float64(b.sat),
				chanID, active, channel.ChannelPoint, b.category,
			)
			if err != nil {
				slog.Error("failed to create channel_balance metric", "error", err)
				continue
			}
			out = append(out, m)
		}
	}

	return out
}
