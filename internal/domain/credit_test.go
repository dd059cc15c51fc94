package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionTypeValid(t *testing.T) {
	for _, typ := range []TransactionType{TransactionAdd, TransactionRemove, TransactionUsage, TransactionRefund} {
		assert.True(t, typ.Valid(), "%s should be valid", typ)
	}
	assert.False(t, TransactionType("TRANSFER").Valid())
	assert.False(t, TransactionType("").Valid())
	assert.False(t, TransactionType("add").Valid(), "types are case sensitive")
}

func TestTransactionTypeSign(t *testing.T) {
	assert.Equal(t, int64(1), TransactionAdd.Sign())
	assert.Equal(t, int64(1), TransactionRefund.Sign())
	assert.Equal(t, int64(-1), TransactionRemove.Sign())
	assert.Equal(t, int64(-1), TransactionUsage.Sign())
}

func TestSignedAmount(t *testing.T) {
	add := &CreditTransaction{Type: TransactionAdd, Amount: 100}
	usage := &CreditTransaction{Type: TransactionUsage, Amount: 30}
	assert.Equal(t, int64(100), add.SignedAmount())
	assert.Equal(t, int64(-30), usage.SignedAmount())
}

func TestReplayBalance(t *testing.T) {
	tests := []struct {
		name    string
		entries []*CreditTransaction
		want    int64
	}{
		{
			name: "empty ledger",
			want: 0,
		},
		{
			name: "grants and debits",
			entries: []*CreditTransaction{
				{Type: TransactionAdd, Amount: 1000},
				{Type: TransactionUsage, Amount: 50},
				{Type: TransactionUsage, Amount: 30},
				{Type: TransactionRemove, Amount: 20},
			},
			want: 900,
		},
		{
			name: "refund compensates usage",
			entries: []*CreditTransaction{
				{Type: TransactionAdd, Amount: 100},
				{Type: TransactionUsage, Amount: 40},
				{Type: TransactionRefund, Amount: 40},
			},
			want: 100,
		},
		{
			name: "negative balance under overage",
			entries: []*CreditTransaction{
				{Type: TransactionAdd, Amount: 10},
				{Type: TransactionUsage, Amount: 25},
			},
			want: -15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplayBalance(tt.entries))
		})
	}
}

func TestReplayMatchesRunningBalanceAfter(t *testing.T) {
	entries := []*CreditTransaction{
		{Type: TransactionAdd, Amount: 500, BalanceAfter: 500},
		{Type: TransactionUsage, Amount: 120, BalanceAfter: 380},
		{Type: TransactionRefund, Amount: 20, BalanceAfter: 400},
		{Type: TransactionRemove, Amount: 100, BalanceAfter: 300},
	}

	var running int64
	for i, e := range entries {
		running += e.SignedAmount()
		assert.Equal(t, e.BalanceAfter, running, "entry %d", i)
	}
	assert.Equal(t, entries[len(entries)-1].BalanceAfter, ReplayBalance(entries))
}
