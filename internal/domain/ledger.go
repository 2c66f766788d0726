package domain

import (
	"math/big"

	"github.com/plutohub/hub/internal/amount"
)

// LedgerEntryType is one of §3's closed set of ledger entry kinds.
type LedgerEntryType string

const (
	LedgerLock     LedgerEntryType = "LOCK"
	LedgerUnlock   LedgerEntryType = "UNLOCK"
	LedgerWin      LedgerEntryType = "WIN"
	LedgerLose     LedgerEntryType = "LOSE"
	LedgerFee      LedgerEntryType = "FEE"
	LedgerDeposit  LedgerEntryType = "DEPOSIT"
	LedgerWithdraw LedgerEntryType = "WITHDRAW"
)

// LedgerEntry is an immutable, append-only row recording one signed effect
// against a user's balance (§3, §4.2). The contract engine mints EntryID as
// a random UUID; the store's Append/AppendMany mint a snowflake id only when
// EntryID is empty. EntryIDs therefore carry no time order: CreatedAt is the
// primary ordering key and EntryID only breaks ties between equal CreatedAt
// values.
type LedgerEntry struct {
	EntryID      string          `json:"entryId"`
	UserID       string          `json:"userId"`
	Type         LedgerEntryType `json:"type"`
	Amount       amount.Amount   `json:"amount"`
	BalanceAfter amount.Amount   `json:"balanceAfter"`
	SessionID    string          `json:"sessionId,omitempty"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    int64           `json:"createdAt"` // unix millis
}

// SignedEffect returns the entry's effect on (balance, locked) as signed
// deltas in the entry's Amount units. Per §4.2: LOCK/UNLOCK move funds
// between available and locked without touching total balance; LOSE
// decreases balance and clears locked; WIN and DEPOSIT increase balance;
// WITHDRAW and FEE decrease balance without touching locked (FEE is
// recorded against a platform-owned pseudo account, never a player's
// locked funds). Summing these deltas over a user's ledger from genesis
// replays the user's (balance, locked) pair (testable property 1).
func (e *LedgerEntry) SignedEffect() (balanceDelta, lockedDelta *big.Int) {
	n := new(big.Int).SetBytes(nil)
	n, _ = n.SetString(e.Amount.String(), 10)
	zero := big.NewInt(0)
	neg := new(big.Int).Neg(n)

	switch e.Type {
	case LedgerLock:
		return zero, n
	case LedgerUnlock:
		return zero, neg
	case LedgerLose:
		return neg, neg
	case LedgerWin, LedgerDeposit:
		return n, zero
	case LedgerWithdraw, LedgerFee:
		return neg, zero
	default:
		return zero, zero
	}
}
