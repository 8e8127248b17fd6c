// Command generate produces paired transaction and receipt CSV fixtures
// for manual testing of the reconciler CLI.
//
// Usage:
//
//	go run generate.go -count 500 -match-rate 0.8 -output-dir ../generated
//
// A configurable share of receipts correspond to a transaction, with
// realistic noise applied: merchant names rendered in processor style
// (uppercase, store numbers, truncation), small amount jitter, and
// settlement-delay date offsets. The remainder are decoys.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var merchants = []struct {
	clean     string
	processor string
}{
	{"Trader Joe's", "TRADER JOES #%03d"},
	{"Blue Bottle Coffee", "BLUE BOTTLE COFFEE %03d"},
	{"Whole Foods Market", "WHOLEFDS MKT %03d"},
	{"Shell", "SHELL OIL %08d"},
	{"Amazon", "AMZN*Mktp US"},
	{"Walgreens", "WALGREENS #%04d"},
	{"Chipotle", "CHIPOTLE %04d"},
	{"Home Depot", "THE HOME DEPOT #%04d"},
}

func main() {
	var (
		count     = flag.Int("count", 200, "number of transactions to generate")
		matchRate = flag.Float64("match-rate", 0.8, "fraction of transactions with a matching receipt")
		seed      = flag.Int64("seed", 42, "random seed, fixed for reproducible fixtures")
		outputDir = flag.String("output-dir", "../generated", "output directory")
	)
	flag.Parse()

	if *matchRate < 0 || *matchRate > 1 {
		log.Fatalf("match-rate must be in [0,1], got %v", *matchRate)
	}

	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}

	txPath := filepath.Join(*outputDir, "transactions.csv")
	rcPath := filepath.Join(*outputDir, "receipts.csv")

	if err := generate(rng, *count, *matchRate, txPath, rcPath); err != nil {
		log.Fatalf("generating fixtures: %v", err)
	}

	fmt.Printf("Wrote %s and %s (%d transactions, match rate %.0f%%)\n",
		txPath, rcPath, *count, *matchRate*100)
}

func generate(rng *rand.Rand, count int, matchRate float64, txPath, rcPath string) error {
	txFile, err := os.Create(txPath)
	if err != nil {
		return err
	}
	defer txFile.Close()
	rcFile, err := os.Create(rcPath)
	if err != nil {
		return err
	}
	defer rcFile.Close()

	txWriter := csv.NewWriter(txFile)
	rcWriter := csv.NewWriter(rcFile)
	defer txWriter.Flush()
	defer rcWriter.Flush()

	if err := txWriter.Write([]string{"transaction_id", "amount", "date", "merchant"}); err != nil {
		return err
	}
	if err := rcWriter.Write([]string{"receipt_id", "total", "date", "vendor"}); err != nil {
		return err
	}

	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	receiptSeq := 0

	for i := 0; i < count; i++ {
		merchant := merchants[rng.Intn(len(merchants))]
		amountCents := 200 + rng.Intn(20000)
		day := base.AddDate(0, 0, rng.Intn(28))

		txRow := []string{
			fmt.Sprintf("TX%05d", i+1),
			centsToAmount(amountCents),
			day.Format("2006-01-02"),
			merchant.clean,
		}
		if err := txWriter.Write(txRow); err != nil {
			return err
		}

		if rng.Float64() >= matchRate {
			continue
		}

		// Matching receipt: processor-style name, occasional tip jitter,
		// settlement delay of up to two days.
		receiptSeq++
		receiptCents := amountCents
		if rng.Float64() < 0.2 {
			receiptCents += rng.Intn(amountCents/100 + 1)
		}
		receiptDay := day.AddDate(0, 0, rng.Intn(3))

		rcRow := []string{
			fmt.Sprintf("RC%05d", receiptSeq),
			centsToAmount(receiptCents),
			receiptDay.Format("2006-01-02"),
			processorName(rng, merchant.processor),
		}
		if err := rcWriter.Write(rcRow); err != nil {
			return err
		}
	}

	// Decoy receipts with no matching transaction.
	decoys := count / 10
	for i := 0; i < decoys; i++ {
		receiptSeq++
		merchant := merchants[rng.Intn(len(merchants))]
		rcRow := []string{
			fmt.Sprintf("RC%05d", receiptSeq),
			centsToAmount(200 + rng.Intn(20000)),
			base.AddDate(0, 0, rng.Intn(28)).Format("2006-01-02"),
			processorName(rng, merchant.processor),
		}
		if err := rcWriter.Write(rcRow); err != nil {
			return err
		}
	}

	txWriter.Flush()
	rcWriter.Flush()
	if err := txWriter.Error(); err != nil {
		return err
	}
	return rcWriter.Error()
}

func centsToAmount(cents int) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}

func processorName(rng *rand.Rand, pattern string) string {
	if !hasStoreNumber(pattern) {
		return pattern
	}
	return fmt.Sprintf(pattern, rng.Intn(10000))
}

func hasStoreNumber(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] == '%' && pattern[i+1] != '%' {
			return true
		}
	}
	return false
}
