package features

import (
    "encoding/json"
    "strings"
    "time"

    "github.com/shopspring/decimal"

    "DefiGuard/internal/domain/models"
)

// amountArgIndex is the position of the amount in a transfer entry-function call.
const amountArgIndex = 1

// Neutral values used when a monitored account has no trust or biometric signal.
const (
    DefaultTrustScore          = 0.5
    DefaultBiometricConfidence = 1.0
)

// ExtractAmount reads the transferred amount from the payload arguments.
// Missing or non-numeric arguments count as 0.
func ExtractAmount(p models.TransactionPayload) float64 {
    if len(p.Arguments) <= amountArgIndex {
        return 0
    }
    raw := strings.TrimSpace(string(p.Arguments[amountArgIndex]))
    var s string
    if err := json.Unmarshal([]byte(raw), &s); err != nil {
        // not a JSON string, try as a bare number
        s = raw
    }
    d, err := decimal.NewFromString(s)
    if err != nil {
        return 0
    }
    f, _ := d.Float64()
    return f
}

// SummarizeHistory converts ledger transactions into a history with total and average amount.
func SummarizeHistory(txs []models.ChainTransaction) models.TransactionHistory {
    h := models.TransactionHistory{Transactions: make([]models.HistoricalTransaction, 0, len(txs))}
    total := decimal.Zero
    for _, tx := range txs {
        amount := ExtractAmount(tx.Payload)
        total = total.Add(decimal.NewFromFloat(amount))
        h.Transactions = append(h.Transactions, models.HistoricalTransaction{
            Hash:      tx.Hash,
            Amount:    amount,
            Timestamp: parseMicros(tx.Timestamp),
        })
    }
    h.TotalVolume, _ = total.Float64()
    if n := len(h.Transactions); n > 0 {
        h.AvgAmount, _ = total.Div(decimal.NewFromInt(int64(n))).Float64()
    }
    return h
}

// parseMicros parses a ledger timestamp (microseconds since epoch, as a string).
func parseMicros(s string) int64 {
    d, err := decimal.NewFromString(s)
    if err != nil {
        return 0
    }
    return d.IntPart()
}

// Build assembles the feature vector for a prospective transfer.
func Build(amount float64, h models.TransactionHistory, trust, confidence float64, at time.Time) models.TransactionFeatures {
    return models.TransactionFeatures{
        Amount:              amount,
        HistoricalVolume:    h.TotalVolume,
        AvgTransactionSize:  h.AvgAmount,
        RecipientTrustScore: trust,
        BiometricConfidence: confidence,
        TimeOfDay:           at.Hour(),
        DayOfWeek:           int(at.Weekday()),
    }
}

// Baseline is the feature vector of a typical past transfer of the account.
func Baseline(h models.TransactionHistory, current models.TransactionFeatures) models.TransactionFeatures {
    b := current
    b.Amount = h.AvgAmount
    b.HistoricalVolume = h.TotalVolume
    b.AvgTransactionSize = h.AvgAmount
    return b
}

// Latest describes the account's most recent transfer, for monitoring. An empty history
// yields zero amounts with neutral trust and confidence.
func Latest(h models.TransactionHistory, at time.Time) models.TransactionFeatures {
    f := Build(0, h, DefaultTrustScore, DefaultBiometricConfidence, at)
    if n := len(h.Transactions); n > 0 {
        f.Amount = h.Transactions[n-1].Amount
    }
    return f
}

// Window turns the running sums of a history into per-transaction feature vectors,
// oldest first, for the z-score detector.
func Window(h models.TransactionHistory) []models.TransactionFeatures {
    out := make([]models.TransactionFeatures, 0, len(h.Transactions))
    total := 0.0
    for i, tx := range h.Transactions {
        total += tx.Amount
        out = append(out, models.TransactionFeatures{
            Amount:             tx.Amount,
            HistoricalVolume:   total,
            AvgTransactionSize: total / float64(i+1),
        })
    }
    return out
}

// Scored extends Window with the fields the risk model reads: neutral trust and
// confidence, and the clock of each transfer taken from its ledger timestamp in UTC.
func Scored(h models.TransactionHistory) []models.TransactionFeatures {
    out := Window(h)
    for i, tx := range h.Transactions {
        at := time.UnixMicro(tx.Timestamp).UTC()
        out[i].RecipientTrustScore = DefaultTrustScore
        out[i].BiometricConfidence = DefaultBiometricConfidence
        out[i].TimeOfDay = at.Hour()
        out[i].DayOfWeek = int(at.Weekday())
    }
    return out
}
