// Command sweeper reclaims rent from empty SPL token accounts left
// behind by closed positions. Safe to run any time the bot is stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"migration-sniper/internal/config"
	"migration-sniper/internal/logging"
	"migration-sniper/internal/raydium"
	"migration-sniper/internal/solana"
)

// closesPerTx keeps each transaction comfortably under the packet size.
const closesPerTx = 10

func main() {
	configPath := flag.String("config", "config.toml", "Path to the TOML configuration file")
	dryRun := flag.Bool("dry-run", false, "List closable accounts without sending anything")
	keepWsol := flag.Bool("keep-wsol", true, "Never close the WSOL account")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	if err := sweep(cfg, log, *dryRun, *keepWsol); err != nil {
		log.Fatal().Err(err).Msg("sweep failed")
	}
}

func sweep(cfg *config.Config, log zerolog.Logger, dryRun, keepWsol bool) error {
	keyStr, err := config.PrivateKeyFromEnv()
	if err != nil {
		return err
	}
	wallet, err := solanago.PrivateKeyFromBase58(keyStr)
	if err != nil {
		return fmt.Errorf("parse PRIVATE_KEY: %w", err)
	}
	owner := wallet.PublicKey()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	chain := solana.NewChainClient(cfg.RPC.HTTPURL)

	accounts, err := chain.TokenAccountsByOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("list token accounts: %w", err)
	}

	var closable []solana.TokenAccount
	for _, acct := range accounts {
		if acct.Amount != 0 {
			continue
		}
		if keepWsol && acct.Mint.Equals(raydium.WSOLMint) {
			continue
		}
		closable = append(closable, acct)
	}

	log.Info().
		Int("total_accounts", len(accounts)).
		Int("closable", len(closable)).
		Msg("scanned wallet")
	if len(closable) == 0 {
		return nil
	}

	for _, acct := range closable {
		log.Info().Str("account", acct.Address.String()).Str("mint", acct.Mint.String()).Msg("empty account")
	}
	if dryRun {
		return nil
	}

	for start := 0; start < len(closable); start += closesPerTx {
		end := start + closesPerTx
		if end > len(closable) {
			end = len(closable)
		}
		if err := closeBatch(ctx, chain, wallet, closable[start:end], log); err != nil {
			return err
		}
	}
	return nil
}

func closeBatch(ctx context.Context, chain solana.Chain, wallet solanago.PrivateKey, accounts []solana.TokenAccount, log zerolog.Logger) error {
	owner := wallet.PublicKey()

	instrs := make([]solanago.Instruction, 0, len(accounts))
	for _, acct := range accounts {
		// Rent goes back to the owner.
		instrs = append(instrs, token.NewCloseAccountInstruction(acct.Address, owner, owner, nil).Build())
	}

	bh, err := chain.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solanago.NewTransaction(instrs, bh.Hash, solanago.TransactionPayer(owner))
	if err != nil {
		return fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(pub solanago.PublicKey) *solanago.PrivateKey {
		if pub.Equals(owner) {
			return &wallet
		}
		return nil
	}); err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := chain.SendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}
	log.Info().Str("signature", sig.String()).Int("closes", len(accounts)).Msg("batch submitted")

	return awaitConfirmation(ctx, chain, sig, log)
}

func awaitConfirmation(ctx context.Context, chain solana.Chain, sig solanago.Signature, log zerolog.Logger) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(30 * time.Second)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("transaction %s not confirmed in time", sig)
		case <-ticker.C:
			status, err := chain.SignatureStatus(ctx, sig)
			if err != nil {
				continue
			}
			if status.Failed {
				return fmt.Errorf("transaction %s failed on chain", sig)
			}
			if status.Confirmed {
				log.Info().Str("signature", sig.String()).Msg("batch confirmed")
				return nil
			}
		}
	}
}
