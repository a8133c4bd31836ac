// Command worker drains the mail queue and runs projection reconciliation.
package main

import (
	"fmt"
	"os"

	"github.com/ayo6706/booking-ledger/internal/app"
)

func main() {
	if err := app.RunWorker(); err != nil {
		fmt.Fprintf(os.Stderr, "booking-ledger worker: %v\n", err)
		os.Exit(1)
	}
}
