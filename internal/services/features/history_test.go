package features

import (
    "encoding/json"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "DefiGuard/internal/domain/models"
)

func payload(args ...string) models.TransactionPayload {
    p := models.TransactionPayload{Type: "entry_function_payload", Function: "0x1::coin::transfer"}
    for _, a := range args {
        p.Arguments = append(p.Arguments, json.RawMessage(a))
    }
    return p
}

func TestExtractAmount(t *testing.T) {
    tests := []struct {
        name string
        p    models.TransactionPayload
        want float64
    }{
        {"quoted u64", payload(`"0xabc"`, `"1500"`), 1500},
        {"bare number", payload(`"0xabc"`, `250.5`), 250.5},
        {"missing argument", payload(`"0xabc"`), 0},
        {"no arguments", models.TransactionPayload{}, 0},
        {"not numeric", payload(`"0xabc"`, `"abc"`), 0},
        {"object argument", payload(`"0xabc"`, `{"x":1}`), 0},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            assert.Equal(t, tt.want, ExtractAmount(tt.p))
        })
    }
}

func TestSummarizeHistory(t *testing.T) {
    txs := []models.ChainTransaction{
        {Hash: "0x1", Timestamp: "1700000000000000", Payload: payload(`"0xa"`, `"100"`)},
        {Hash: "0x2", Timestamp: "1700000001000000", Payload: payload(`"0xa"`, `"300"`)},
        {Hash: "0x3", Timestamp: "bad", Payload: payload(`"0xa"`)},
    }
    h := SummarizeHistory(txs)

    assert.Len(t, h.Transactions, 3)
    assert.Equal(t, 400.0, h.TotalVolume)
    assert.InDelta(t, 400.0/3, h.AvgAmount, 1e-9)
    assert.Equal(t, int64(1700000000000000), h.Transactions[0].Timestamp)
    assert.Zero(t, h.Transactions[2].Timestamp)
}

func TestSummarizeHistory_Empty(t *testing.T) {
    h := SummarizeHistory(nil)
    assert.Empty(t, h.Transactions)
    assert.Zero(t, h.TotalVolume)
    assert.Zero(t, h.AvgAmount)
}

func TestBuild(t *testing.T) {
    at := time.Date(2024, 3, 9, 23, 15, 0, 0, time.UTC) // Saturday
    h := models.TransactionHistory{TotalVolume: 1000, AvgAmount: 100}

    f := Build(250, h, 0.8, 1, at)
    assert.Equal(t, models.TransactionFeatures{
        Amount: 250, HistoricalVolume: 1000, AvgTransactionSize: 100,
        RecipientTrustScore: 0.8, BiometricConfidence: 1, TimeOfDay: 23, DayOfWeek: 6,
    }, f)

    b := Baseline(h, f)
    assert.Equal(t, 100.0, b.Amount)
    assert.Equal(t, 100.0, b.AvgTransactionSize)
    assert.Equal(t, 23, b.TimeOfDay)
}

func TestLatest(t *testing.T) {
    at := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
    h := models.TransactionHistory{
        Transactions: []models.HistoricalTransaction{{Amount: 10}, {Amount: 70}},
        TotalVolume:  80,
        AvgAmount:    40,
    }
    f := Latest(h, at)
    assert.Equal(t, 70.0, f.Amount)
    assert.Equal(t, DefaultTrustScore, f.RecipientTrustScore)
    assert.Equal(t, DefaultBiometricConfidence, f.BiometricConfidence)

    empty := Latest(models.TransactionHistory{}, at)
    assert.Zero(t, empty.Amount)
    assert.Equal(t, 10, empty.TimeOfDay)
}

func TestWindow(t *testing.T) {
    h := models.TransactionHistory{Transactions: []models.HistoricalTransaction{{Amount: 10}, {Amount: 30}}}
    w := Window(h)
    assert.Len(t, w, 2)
    assert.Equal(t, 40.0, w[1].HistoricalVolume)
    assert.Equal(t, 20.0, w[1].AvgTransactionSize)
}

func TestScored(t *testing.T) {
    at := time.Date(2024, 3, 9, 22, 15, 0, 0, time.UTC)
    h := models.TransactionHistory{Transactions: []models.HistoricalTransaction{
        {Amount: 10, Timestamp: at.UnixMicro()},
        {Amount: 30, Timestamp: at.Add(3 * time.Hour).UnixMicro()},
    }}
    s := Scored(h)
    assert.Len(t, s, 2)
    assert.Equal(t, 22, s[0].TimeOfDay)
    assert.Equal(t, 6, s[0].DayOfWeek)
    assert.Equal(t, 1, s[1].TimeOfDay)
    assert.Equal(t, 0, s[1].DayOfWeek)
    assert.Equal(t, DefaultTrustScore, s[1].RecipientTrustScore)
    assert.Equal(t, 40.0, s[1].HistoricalVolume)
}
