// Command api serves the guest cancellation flow and the ledger API.
package main

import (
	"fmt"
	"os"

	"github.com/ayo6706/booking-ledger/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "booking-ledger api: %v\n", err)
		os.Exit(1)
	}
}
