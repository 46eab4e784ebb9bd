// Package main provides a CLI for generating and checking the bcrypt hash
// that guards the admin reconciliation endpoint.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Unwrenchable/fizz-caps/internal/api"
	"github.com/Unwrenchable/fizz-caps/internal/config"
)

func main() {
	start := time.Now()

	token := flag.String("token", "", "admin token to hash; empty generates a random one")
	check := flag.Bool("check", false, "verify -token against reconcile.admin_token_hash in -config instead of hashing")
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file (with -check)")
	flag.Parse()

	if *check {
		if *token == "" {
			flag.Usage()
			os.Exit(1)
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		if cfg.Reconcile.AdminTokenHash == "" {
			log.Fatalf("reconcile.admin_token_hash is not set in %s", *configPath)
		}
		if !api.CheckToken(*token, cfg.Reconcile.AdminTokenHash) {
			fmt.Fprintf(os.Stdout, "token does NOT match [%s]\n", time.Since(start))
			os.Exit(2)
		}
		fmt.Fprintf(os.Stdout, "token matches [%s]\n", time.Since(start))
		return
	}

	plain := *token
	if plain == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			log.Fatalf("generating token: %v", err)
		}
		plain = hex.EncodeToString(buf)
		fmt.Fprintf(os.Stdout, "token: %s\n", plain)
	}

	hash, err := api.HashToken(plain)
	if err != nil {
		log.Fatalf("hashing token: %v", err)
	}
	fmt.Fprintf(os.Stdout, "FIZZ_RECONCILE_ADMIN_TOKEN_HASH=%s [%s]\n", hash, time.Since(start))
}
