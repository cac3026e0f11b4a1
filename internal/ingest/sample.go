package ingest

import "spendalyzer/internal/core"

// SampleFilename is the source label used for the bundled sample.
const SampleFilename = "sample.csv"

// SampleCSV is the bundled demo ledger served when no file is uploaded.
const SampleCSV = `date,amount,description
2024-09-01,-85.20,Metro Groceries
2024-09-02,-18.70,UBER Ride
2024-09-03,2000.00,Payroll Deposit
2024-09-05,-120.00,Costco Wholesale
2024-09-09,-55.99,Cineplex Movies
2024-09-10,-15.99,Netflix Subscription
2024-09-12,-60.00,Shell Gas Station
2024-09-16,1500.00,Freelance Income
2024-09-19,-12.00,Spotify Premium
`

// Sample returns the bundled ledger, loaded through the same pipeline as
// uploads.
func Sample() (core.Ledger, error) {
	ledger, _, err := LoadLedger([]byte(SampleCSV), SampleFilename)
	return ledger, err
}
