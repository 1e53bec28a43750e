package jito

import (
	"context"
	"sort"
	"time"

	"bundler/logger"
	"bundler/types"
	"bundler/utils"

	MapSet "github.com/deckarep/golang-set/v2"
)

const DefaultWatchInterval = 2 * time.Second

// StatusSource is implemented by Relay.
type StatusSource interface {
	GetBundleStatuses(ctx context.Context, ids []string) ([]types.BundleStatus, error)
}

type StatusSourceFunc func(ctx context.Context, ids []string) ([]types.BundleStatus, error)

func (f StatusSourceFunc) GetBundleStatuses(ctx context.Context, ids []string) ([]types.BundleStatus, error) {
	return f(ctx, ids)
}

// WatchBundles polls the relay until every id reached the wanted confirmation level
// ("processed", "confirmed" or "finalized") or ctx is done. It returns the last status
// seen per id, sorted by slot.
func WatchBundles(ctx context.Context, src StatusSource, ids []string, want string, interval time.Duration) ([]types.BundleStatus, error) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	pending := MapSet.NewSet(ids...)
	seen := make(map[string]types.BundleStatus, len(ids))

	for pending.Cardinality() > 0 {
		batch := pending.ToSlice()
		sort.Strings(batch)
		statuses, err := src.GetBundleStatuses(ctx, batch)
		if err != nil {
			logger.Relay().Error("GetBundleStatuses failed", "err", err)
		} else {
			for _, s := range statuses {
				seen[s.BundleId] = s
				if reached(s.ConfirmationStatus, want) {
					pending.Remove(s.BundleId)
				}
			}
			logger.Relay().Info("Summary of bundle status query",
				"queried", len(batch),
				"returned", len(statuses),
				"pending", pending.Cardinality(),
			)
		}
		if pending.Cardinality() == 0 {
			break
		}
		if err := utils.Sleep(ctx, interval); err != nil {
			return sortedStatuses(seen), err
		}
	}
	return sortedStatuses(seen), nil
}

var confirmationLevels = map[string]int{"processed": 1, "confirmed": 2, "finalized": 3}

func reached(status, want string) bool {
	w, ok := confirmationLevels[want]
	if !ok {
		w = confirmationLevels["confirmed"]
	}
	return confirmationLevels[status] >= w
}

func sortedStatuses(seen map[string]types.BundleStatus) []types.BundleStatus {
	out := make([]types.BundleStatus, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].BundleId < out[j].BundleId
	})
	return out
}
