package utils

import (
	"fmt"
	"sort"
	"strings"

	MapSet "github.com/deckarep/golang-set/v2"
)

const WSOL = "So11111111111111111111111111111111111111112"

// Venue labels understood by the aggregator's dexes filter.
var KnownDexes = MapSet.NewSet(
	"1DEX",
	"Aldrin",
	"Aldrin V2",
	"Boop.fun",
	"Byreal",
	"Crema",
	"Cropper",
	"Daos.fun",
	"Dynamic Bonding Curve",
	"FluxBeam",
	"GooseFX GAMMA",
	"Guacswap",
	"Helium Network",
	"Invariant",
	"Lifinity V2",
	"Mercurial",
	"Meteora",
	"Meteora DAMM v2",
	"Meteora DLMM",
	"Moonshot",
	"Obric V2",
	"OpenBook V2",
	"Orca V1",
	"Orca V2",
	"Penguin",
	"Perps",
	"Phoenix",
	"Pump.fun",
	"Pump.fun Amm",
	"Raydium",
	"Raydium CLMM",
	"Raydium CP",
	"Raydium Launchlab",
	"Saber",
	"Saber (Decimals)",
	"Sanctum",
	"Sanctum Infinity",
	"Saros",
	"SolFi",
	"Solayer",
	"Stabble Stable Swap",
	"Stabble Weighted Swap",
	"Token Swap",
	"Virtuals",
	"Whirlpool",
	"Woofi",
	"ZeroFi",
)

// NormalizeDexes validates a venue filter against KnownDexes, dropping blanks and
// duplicates while keeping the caller's order. An empty result means unrestricted.
func NormalizeDexes(dexes []string) ([]string, error) {
	seen := MapSet.NewThreadUnsafeSet[string]()
	unknown := MapSet.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(dexes))
	for _, d := range dexes {
		d = strings.TrimSpace(d)
		if d == "" || seen.Contains(d) {
			continue
		}
		seen.Add(d)
		if !KnownDexes.Contains(d) {
			unknown.Add(d)
			continue
		}
		out = append(out, d)
	}
	if unknown.Cardinality() > 0 {
		names := unknown.ToSlice()
		sort.Strings(names)
		return nil, fmt.Errorf("unknown dexes: %s", strings.Join(names, ", "))
	}
	return out, nil
}
