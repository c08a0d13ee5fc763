package testutil

import (
	"fmt"
	"time"

	"github.com/kontoworks/konto/internal/model"
)

// FixtureUserID is the user every fixture belongs to unless overridden.
const FixtureUserID = "user-1"

// UserPartner returns an active user-owned partner with sane defaults.
func UserPartner(id, name string) *model.Partner {
	return &model.Partner{
		ID:       id,
		UserID:   FixtureUserID,
		Name:     name,
		Type:     model.PartnerTypeUser,
		IsActive: true,
	}
}

// GlobalPartner returns an active shared partner template.
func GlobalPartner(id, name string) *model.Partner {
	return &model.Partner{
		ID:       id,
		Name:     name,
		Type:     model.PartnerTypeGlobal,
		IsActive: true,
	}
}

// Category returns an active no-receipt category.
func Category(id, name string) *model.Category {
	return &model.Category{
		ID:       id,
		UserID:   FixtureUserID,
		Name:     name,
		IsActive: true,
	}
}

// BankTransaction returns an unassigned transaction with the given bank texts.
func BankTransaction(id, partner, name string) model.Transaction {
	return model.Transaction{
		ID:          id,
		UserID:      FixtureUserID,
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		AmountMinor: -4299,
		Currency:    "EUR",
		Partner:     partner,
		Name:        name,
	}
}

// BankTransactions returns count unassigned transactions with distinct IDs
// and ascending dates.
func BankTransactions(count int) []model.Transaction {
	txns := make([]model.Transaction, count)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range txns {
		txns[i] = model.Transaction{
			ID:          fmt.Sprintf("txn-%04d", i+1),
			UserID:      FixtureUserID,
			Date:        base.AddDate(0, 0, i),
			AmountMinor: int64(-(i + 1) * 100),
			Currency:    "EUR",
			Partner:     fmt.Sprintf("Counterparty %d", i%5+1),
			Name:        fmt.Sprintf("Payment %d", i+1),
		}
	}
	return txns
}

// ConfirmedTransaction returns a transaction the user assigned to the given
// partner.
func ConfirmedTransaction(id, partnerID, partner, name string) model.Transaction {
	txn := BankTransaction(id, partner, name)
	txn.PartnerID = partnerID
	txn.PartnerType = model.PartnerTypeUser
	txn.PartnerMatchConfidence = 100
	txn.PartnerMatchedBy = model.MatchedByManual
	return txn
}

// AutoAssignedTransaction returns a transaction assigned by a match run.
func AutoAssignedTransaction(id, partnerID, partner, name string) model.Transaction {
	txn := BankTransaction(id, partner, name)
	txn.PartnerID = partnerID
	txn.PartnerType = model.PartnerTypeUser
	txn.PartnerMatchConfidence = 92
	txn.PartnerMatchedBy = model.MatchedByAuto
	return txn
}

// ReceiptFile returns a stored document with the given extracted counterparty.
func ReceiptFile(id, partnerName string) *model.File {
	amount := int64(-4299)
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return &model.File{
		ID:          id,
		UserID:      FixtureUserID,
		PartnerName: partnerName,
		AmountMinor: &amount,
		Date:        &date,
		Currency:    "EUR",
		RawText:     "Rechnung " + partnerName,
	}
}
