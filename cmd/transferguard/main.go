// transferguard checks token transfers before they are signed.
//
// Environment variables (also read from a .env file in the working directory):
//
//	TRANSFERGUARD_RPC_URL         balance RPC endpoint, overrides the policy
//	TRANSFERGUARD_TOKEN_PRICE_USD token price for the large-amount warning
package main

import (
	"github.com/joho/godotenv"

	"github.com/ppiankov/transferguard/internal/cli"
)

func main() {
	// A missing .env is normal; the environment may be set directly.
	_ = godotenv.Load()
	cli.Execute()
}
