package quora

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fixed request shapes for the three traversal levels.
const (
	campaignListFields = "accountId,accountName,campaignId,campaignName"
	adListFields       = "accountId,accountName,adId,adName"
	metricsFields      = "accountId,accountName,accountCurrency,adId,adName,adSetId,adSetName,bidAmount,campaignId,campaignName,clicks,conversions,cpc,ctr,impressions,landingURL,spend,status"
	presetTimeRange    = "LAST_30_DAYS"
	conversionsKey     = "conversions"

	// The API reports spend in hundredths of a cent; dividing converts
	// to currency units.
	spendDivisor = 10000.0
)

// ConversionTypes is the per-conversion-type breakdown requested for ad
// metrics. Each entry becomes a column of the warehouse table after
// flattening.
var ConversionTypes = []string{
	"Generic",
	"AppInstall",
	"Purchase",
	"GenerateLead",
	"CompleteRegistration",
	"AddPaymentInfo",
	"AddToCart",
	"AddToWishlist",
	"Search",
}

// Harvester resolves the account's ad hierarchy and fetches per-ad daily
// metrics. All calls go through one Client and therefore one shared rate
// limiter; Workers only bounds in-flight ad fetches, it does not raise
// the request ceiling.
type Harvester struct {
	client  *Client
	account string

	// Workers bounds concurrent ad-metric fetches in FetchAdMetrics.
	// 1 (the default) preserves strictly sequential, discovery-order
	// processing.
	Workers int
}

// Stats summarizes a harvest for the run log.
type Stats struct {
	Campaigns int
	Ads       int
	Records   int
	Requests  int64
}

// NewHarvester creates a Harvester for the given ad account.
func NewHarvester(client *Client, accountID string) *Harvester {
	return &Harvester{client: client, account: accountID, Workers: 1}
}

// ListCampaignIDs pages through the account-level endpoint at campaign
// granularity and returns every campaignId in page order.
func (h *Harvester) ListCampaignIDs(ctx context.Context) []int64 {
	params := url.Values{
		"fields": {campaignListFields},
		"level":  {"CAMPAIGN"},
		"sort":   {"campaignId"},
	}
	records := h.client.FetchAll(ctx, fmt.Sprintf("%s/accounts/%s", h.client.BaseURL(), h.account), params)

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if id, ok := Int64Field(rec, "campaignId"); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ListAdIDs pages through each campaign at ad granularity and returns the
// union of adIds. An ad referenced by several campaigns appears once.
func (h *Harvester) ListAdIDs(ctx context.Context, campaignIDs []int64) map[int64]struct{} {
	ids := make(map[int64]struct{})
	for _, campaignID := range campaignIDs {
		params := url.Values{
			"fields": {adListFields},
			"level":  {"AD"},
			"sort":   {"adId"},
		}
		records := h.client.FetchAll(ctx, fmt.Sprintf("%s/campaigns/%d", h.client.BaseURL(), campaignID), params)
		for _, rec := range records {
			if id, ok := Int64Field(rec, "adId"); ok {
				ids[id] = struct{}{}
			}
		}
	}
	return ids
}

// FetchAdMetrics fetches the 30-day daily metrics for every ad, flattens
// the conversion breakdown, and rescales spend. Ads are processed in
// numeric ID order on a worker pool of size Workers; ads whose fetch
// yields nothing contribute nothing.
func (h *Harvester) FetchAdMetrics(ctx context.Context, adIDs map[int64]struct{}) []FlatRecord {
	sorted := make([]int64, 0, len(adIDs))
	for id := range adIDs {
		sorted = append(sorted, id)
	}
	slices.Sort(sorted)

	workers := h.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		out []FlatRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, adID := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records := h.fetchAdData(gctx, adID)
			if len(records) == 0 {
				return nil
			}
			mu.Lock()
			out = append(out, records...)
			mu.Unlock()
			return nil
		})
	}

	// Per-ad failures are swallowed inside the pagination loop; the only
	// group error is context cancellation, which still yields the
	// records gathered before it.
	if err := g.Wait(); err != nil {
		zap.L().Warn("ad metrics fetch interrupted", zap.Error(err))
	}
	return out
}

func (h *Harvester) fetchAdData(ctx context.Context, adID int64) []FlatRecord {
	zap.L().Debug("fetching ad metrics", zap.Int64("ad_id", adID))

	params := url.Values{
		"conversionTypes": {strings.Join(ConversionTypes, ",")},
		"granularity":     {"DAY"},
		"fields":          {metricsFields},
		"presetTimeRange": {presetTimeRange},
	}
	records := h.client.FetchAll(ctx, fmt.Sprintf("%s/ads/%d", h.client.BaseURL(), adID), params)
	if len(records) == 0 {
		return nil
	}

	Flatten(records, conversionsKey, "")
	for _, rec := range records {
		if spend, ok := Float64Field(rec, "spend"); ok && spend > 0 {
			rec["spend"] = spend / spendDivisor
		}
	}
	return records
}

// Harvest runs the full three-stage traversal and returns the flattened
// record set with run statistics.
func (h *Harvester) Harvest(ctx context.Context) ([]FlatRecord, Stats, error) {
	log := zap.L().With(zap.String("component", "quora.harvester"), zap.String("account", h.account))

	campaignIDs := h.ListCampaignIDs(ctx)
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	adIDs := h.ListAdIDs(ctx, campaignIDs)
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	log.Info("hierarchy resolved",
		zap.Int("campaigns", len(campaignIDs)),
		zap.Int("ads", len(adIDs)),
	)

	records := h.FetchAdMetrics(ctx, adIDs)

	stats := Stats{
		Campaigns: len(campaignIDs),
		Ads:       len(adIDs),
		Records:   len(records),
		Requests:  h.client.limiter.Requests(),
	}
	log.Info("harvest complete",
		zap.Int("records", stats.Records),
		zap.Int64("requests", stats.Requests),
	)
	return records, stats, ctx.Err()
}

