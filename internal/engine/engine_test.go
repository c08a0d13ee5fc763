package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/match"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMatcher(db *testutil.TestDB) *Matcher {
	return NewMatcher(db.Storage, nil, Options{}, discardLogger())
}

// seedPartnerWithPatterns saves a partner and installs its learned patterns.
func seedPartnerWithPatterns(t *testing.T, db *testutil.TestDB, p *model.Partner, patterns ...model.LearnedPattern) {
	t.Helper()
	ctx := context.Background()
	db.SeedPartners(ctx, p)
	require.NoError(t, db.Storage.ReplacePartnerPatterns(ctx, p.ID, patterns))
}

func TestRank_OrdersByConfidenceAndCaps(t *testing.T) {
	txn := testutil.BankTransaction("txn-1", "ACME GMBH", "Rechnung 4711 Teilzahlung")
	pattern := func(id string, confidence int) *match.Profile {
		return match.PartnerProfile(&model.Partner{
			ID:   id,
			Name: "Unrelated " + id,
			Type: model.PartnerTypeUser,
			LearnedPatterns: []model.LearnedPattern{
				{Pattern: "*rechnung 4711*", Confidence: confidence},
			},
		}, nil)
	}

	got := Rank(&txn, []*match.Profile{
		pattern("p-62", 62),
		pattern("p-85", 85),
		pattern("p-55", 55),
		pattern("p-70", 70),
	})

	require.Len(t, got, 3)
	assert.Equal(t, "p-85", got[0].PartnerID)
	assert.Equal(t, "p-70", got[1].PartnerID)
	assert.Equal(t, "p-62", got[2].PartnerID)
}

func TestMatchPartners_PatternAutoApplies(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-amazon", "Amazon EU"),
		model.LearnedPattern{Pattern: "amazon*", Confidence: 95})
	db.SeedTransactions(ctx,
		testutil.BankTransaction("txn-1", "AMAZON EU S.A.R.L.", "Bestellung 302-584"),
		testutil.BankTransaction("txn-2", "Stadtwerke Bochum", "Abschlag Strom"),
	)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.AutoApplied)
	assert.Equal(t, 0, stats.Suggested)

	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "partner-amazon", got.PartnerID)
	assert.Equal(t, model.PartnerTypeUser, got.PartnerType)
	assert.Equal(t, model.MatchedByAuto, got.PartnerMatchedBy)
	assert.Equal(t, 95, got.PartnerMatchConfidence)
	require.Len(t, got.PartnerSuggestions, 1)
	assert.Equal(t, model.MatchSourcePattern, got.PartnerSuggestions[0].Source)

	other, err := db.Storage.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.False(t, other.Assigned())
	assert.Empty(t, other.PartnerSuggestions)
}

func TestMatchPartners_ThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-swm", "Stadtwerke Muenchen"),
		model.LearnedPattern{Pattern: "swm abschlag*", Confidence: 89})
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-netflix", "Netflix International"),
		model.LearnedPattern{Pattern: "netflix*", Confidence: 88})
	db.SeedTransactions(ctx,
		testutil.BankTransaction("txn-at", "SWM ABSCHLAG STROM", "Dauerauftrag"),
		testutil.BankTransaction("txn-below", "NETFLIX.COM 866-579-7172", "Mitgliedschaft"),
	)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoApplied)
	assert.Equal(t, 1, stats.Suggested)

	at, err := db.Storage.GetTransaction(ctx, "txn-at")
	require.NoError(t, err)
	assert.Equal(t, "partner-swm", at.PartnerID)
	assert.Equal(t, model.MatchedByAuto, at.PartnerMatchedBy)
	assert.Equal(t, 89, at.PartnerMatchConfidence)

	// One point short of the threshold stays a suggestion.
	below, err := db.Storage.GetTransaction(ctx, "txn-below")
	require.NoError(t, err)
	assert.False(t, below.Assigned())
	require.Len(t, below.PartnerSuggestions, 1)
	assert.Equal(t, "partner-netflix", below.PartnerSuggestions[0].PartnerID)
	assert.Equal(t, 88, below.PartnerSuggestions[0].Confidence)
}

func TestMatchPartners_UserConfirmedAssignmentKept(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	db.SeedPartners(ctx, testutil.UserPartner("partner-old", "Schreinerei Huber"))
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-new", "REWE Zentrale"),
		model.LearnedPattern{Pattern: "rewe*", Confidence: 97})
	txn := testutil.ConfirmedTransaction("txn-1", "partner-old", "REWE SAGT DANKE 44123", "Kartenzahlung")
	db.SeedTransactions(ctx, txn)
	db.AssignTransactions(ctx, txn)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AutoApplied)
	assert.Equal(t, 1, stats.Suggested)

	// The confirmed assignment stands; the better candidate is only suggested.
	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "partner-old", got.PartnerID)
	assert.Equal(t, model.MatchedByManual, got.PartnerMatchedBy)
	require.NotEmpty(t, got.PartnerSuggestions)
	assert.Equal(t, "partner-new", got.PartnerSuggestions[0].PartnerID)
}

func TestMatchPartners_AutoAssignmentMovesToBetterCandidate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-a", "Alpha Logistik"),
		model.LearnedPattern{Pattern: "alpha*", Confidence: 90})
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-b", "Beta Spedition"),
		model.LearnedPattern{Pattern: "alphatrans*", Confidence: 96})
	txn := testutil.AutoAssignedTransaction("txn-1", "partner-a", "ALPHATRANS SPEDITION GMBH", "Fracht 2024-0117")
	db.SeedTransactions(ctx, txn)
	db.AssignTransactions(ctx, txn)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoApplied)

	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "partner-b", got.PartnerID)
	assert.Equal(t, 96, got.PartnerMatchConfidence)
	assert.Equal(t, model.MatchedByAuto, got.PartnerMatchedBy)
}

func TestMatchPartners_StaleAutoAssignmentNotRevoked(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	db.SeedPartners(ctx, testutil.UserPartner("partner-a", "Moebelhaus Krause"))
	txn := testutil.AutoAssignedTransaction("txn-1", "partner-a", "IKEA DEUTSCHLAND", "Einrichtung")
	db.SeedTransactions(ctx, txn)
	db.AssignTransactions(ctx, txn)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AutoApplied)
	assert.Equal(t, 0, stats.Suggested)

	// Revoking assignments is the cascade's job; a match run only adds.
	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "partner-a", got.PartnerID)
	assert.Equal(t, model.MatchedByAuto, got.PartnerMatchedBy)
}

func TestMatchPartners_SecondRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-amazon", "Amazon EU"),
		model.LearnedPattern{Pattern: "amazon*", Confidence: 95})
	txns := testutil.BankTransactions(60)
	txns = append(txns, testutil.BankTransaction("txn-amazon", "AMAZON EU S.A.R.L.", "Bestellung"))
	db.SeedTransactions(ctx, txns...)

	m := newTestMatcher(db)
	first, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 61, first.Scanned)
	assert.Equal(t, 1, first.AutoApplied)

	second, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 61, second.Scanned)
	assert.Equal(t, 0, second.AutoApplied)
	assert.Equal(t, 0, second.Suggested)
}

func TestMatchPartners_SuggestionsCappedAtThree(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-a", "Kurierdienst Eins"),
		model.LearnedPattern{Pattern: "*lieferung 7001*", Confidence: 71})
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-b", "Kurierdienst Zwei"),
		model.LearnedPattern{Pattern: "*lieferung 7001*", Confidence: 76})
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-c", "Kurierdienst Drei"),
		model.LearnedPattern{Pattern: "*lieferung 7001*", Confidence: 81})
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-d", "Kurierdienst Vier"),
		model.LearnedPattern{Pattern: "*lieferung 7001*", Confidence: 66})
	db.SeedTransactions(ctx, testutil.BankTransaction("txn-1", "ACME VERSAND", "Lieferung 7001 Teilzahlung"))

	m := newTestMatcher(db)
	_, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)

	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, got.Assigned())
	require.Len(t, got.PartnerSuggestions, 3)
	assert.Equal(t, "partner-c", got.PartnerSuggestions[0].PartnerID)
	assert.Equal(t, "partner-b", got.PartnerSuggestions[1].PartnerID)
	assert.Equal(t, "partner-a", got.PartnerSuggestions[2].PartnerID)
}

func TestMatchPartners_UserPartnerOutranksGlobalOnTie(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.GlobalPartner("global-telekom", "Deutsche Telekom AG"),
		model.LearnedPattern{Pattern: "telekom*", Confidence: 80})
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-telekom", "Telekom Festnetz"),
		model.LearnedPattern{Pattern: "telekom*", Confidence: 80})
	db.SeedTransactions(ctx, testutil.BankTransaction("txn-1", "TELEKOM DEUTSCHLAND GMBH", "Rechnung Festnetz"))

	m := newTestMatcher(db)
	_, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)

	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, got.PartnerSuggestions, 2)
	assert.Equal(t, "partner-telekom", got.PartnerSuggestions[0].PartnerID)
	assert.Equal(t, model.PartnerTypeUser, got.PartnerSuggestions[0].PartnerType)
	assert.Equal(t, "global-telekom", got.PartnerSuggestions[1].PartnerID)
	assert.Equal(t, model.PartnerTypeGlobal, got.PartnerSuggestions[1].PartnerType)
}

func TestMatchPartners_AccountNumberShortCircuits(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	partner := testutil.UserPartner("partner-huber", "Schreinerei Huber")
	partner.AccountNumbers = []string{"DE02 1203 0000 0000 2020 51"}
	db.SeedPartners(ctx, partner)
	txn := testutil.BankTransaction("txn-1", "HUBER", "Rechnung 2024-19")
	txn.PartnerIBAN = "DE02120300000000202051"
	db.SeedTransactions(ctx, txn)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoApplied)

	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "partner-huber", got.PartnerID)
	assert.Equal(t, 100, got.PartnerMatchConfidence)
	require.Len(t, got.PartnerSuggestions, 1)
	assert.Equal(t, model.MatchSourceAccount, got.PartnerSuggestions[0].Source)
}

func TestMatchPartners_ManualRemovalBlocksPartner(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-rewe", "REWE Zentrale"),
		model.LearnedPattern{Pattern: "rewe*", Confidence: 95})
	require.NoError(t, db.Storage.AddManualRemoval(ctx, "partner-rewe", model.ManualRemoval{
		TransactionID: "txn-1",
		Partner:       "REWE SAGT DANKE 44123",
		Name:          "Kartenzahlung",
	}))
	db.SeedTransactions(ctx,
		testutil.BankTransaction("txn-1", "REWE SAGT DANKE 44123", "Kartenzahlung"),
		testutil.BankTransaction("txn-2", "REWE SAGT DANKE 44123", "Kartenzahlung"),
	)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoApplied)

	blocked, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, blocked.Assigned())
	assert.Empty(t, blocked.PartnerSuggestions)

	assigned, err := db.Storage.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.Equal(t, "partner-rewe", assigned.PartnerID)
}

func TestMatchPartners_ExplicitIDsOnly(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-amazon", "Amazon EU"),
		model.LearnedPattern{Pattern: "amazon*", Confidence: 95})
	db.SeedTransactions(ctx,
		testutil.BankTransaction("txn-1", "AMAZON EU S.A.R.L.", "Bestellung"),
		testutil.BankTransaction("txn-2", "AMAZON EU S.A.R.L.", "Bestellung"),
	)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, []string{"txn-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.AutoApplied)

	touched, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, touched.Assigned())

	untouched, err := db.Storage.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.False(t, untouched.Assigned())
}

func TestMatchPartners_UnknownIDRejected(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-amazon", "Amazon EU"),
		model.LearnedPattern{Pattern: "amazon*", Confidence: 95})
	db.SeedTransactions(ctx, testutil.BankTransaction("txn-1", "AMAZON EU S.A.R.L.", "Bestellung"))

	m := newTestMatcher(db)
	_, err := m.MatchPartners(ctx, testutil.FixtureUserID, []string{"txn-1", "ghost"})
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)

	// The batch is rejected before any row is written.
	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, got.Assigned())
}

func TestMatchPartners_NoActivePartners(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	db.SeedTransactions(ctx, testutil.BankTransaction("txn-1", "AMAZON EU S.A.R.L.", "Bestellung"))

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)
}

func TestMatchPartners_ScanCapBoundsFullRun(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-x", "Xaver Bau"),
		model.LearnedPattern{Pattern: "xaver*", Confidence: 95})
	db.SeedTransactions(ctx, testutil.BankTransactions(40)...)

	m := NewMatcher(db.Storage, nil, Options{ScanCap: 25}, discardLogger())
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, stats.Scanned)
}

func TestMatchPartners_PagesThroughCorpus(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-late", "Spaete Lieferung"),
		model.LearnedPattern{Pattern: "*sonderposten 9*", Confidence: 95})
	txns := testutil.BankTransactions(520)
	txns[519].Name = "Sonderposten 9"
	db.SeedTransactions(ctx, txns...)

	m := newTestMatcher(db)
	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 520, stats.Scanned)
	assert.Equal(t, 1, stats.AutoApplied)

	// The hit sits on the second page of the scan.
	got, err := db.Storage.GetTransaction(ctx, "txn-0520")
	require.NoError(t, err)
	assert.Equal(t, "partner-late", got.PartnerID)
}

func TestMatchCategories_FillsEmptyOnly(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	db.SeedCategories(ctx, testutil.Category("cat-fees", "Kontoführung"), testutil.Category("cat-other", "Sonstiges"))
	require.NoError(t, db.Storage.ReplaceCategoryPatterns(ctx, "cat-fees", []model.LearnedPattern{
		{Pattern: "*entgeltabrechnung*", Confidence: 94},
	}))

	empty := testutil.BankTransaction("txn-1", "VOLKSBANK", "Entgeltabrechnung siehe Anlage")
	taken := testutil.BankTransaction("txn-2", "VOLKSBANK", "Entgeltabrechnung siehe Anlage")
	taken.NoReceiptCategoryID = "cat-other"
	db.SeedTransactions(ctx, empty, taken)
	db.AssignTransactions(ctx, taken)

	m := newTestMatcher(db)
	stats, err := m.MatchCategories(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.AutoApplied)

	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-fees", got.NoReceiptCategoryID)
	assert.False(t, got.Assigned())

	// A category set earlier counts as user intent and is never overwritten.
	kept, err := db.Storage.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.Equal(t, "cat-other", kept.NoReceiptCategoryID)
}

func TestMatchCategories_BelowThresholdLeavesEmpty(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	db.SeedCategories(ctx, testutil.Category("cat-fees", "Kontoführung"))
	require.NoError(t, db.Storage.ReplaceCategoryPatterns(ctx, "cat-fees", []model.LearnedPattern{
		{Pattern: "*entgeltabrechnung*", Confidence: 70},
	}))
	db.SeedTransactions(ctx, testutil.BankTransaction("txn-1", "VOLKSBANK", "Entgeltabrechnung siehe Anlage"))

	m := newTestMatcher(db)
	stats, err := m.MatchCategories(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AutoApplied)

	got, err := db.Storage.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Empty(t, got.NoReceiptCategoryID)
}

func TestApplyPatterns_BackfillsUnassignedOnly(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-rewe", "REWE Zentrale"),
		model.LearnedPattern{Pattern: "rewe*", Confidence: 93})
	db.SeedPartners(ctx, testutil.UserPartner("partner-deko", "Deko Discount"))

	confirmed := testutil.ConfirmedTransaction("txn-manual", "partner-deko", "REWE SAGT DANKE 44123", "Kartenzahlung")
	auto := testutil.AutoAssignedTransaction("txn-auto", "partner-deko", "REWE SAGT DANKE 44123", "Kartenzahlung")
	fresh := testutil.BankTransaction("txn-fresh", "REWE SAGT DANKE 44123", "Kartenzahlung")
	db.SeedTransactions(ctx, confirmed, auto, fresh)
	db.AssignTransactions(ctx, confirmed, auto)

	m := newTestMatcher(db)
	stats, err := m.ApplyPatterns(ctx, testutil.FixtureUserID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 1, stats.AutoApplied)

	got, err := db.Storage.GetTransaction(ctx, "txn-fresh")
	require.NoError(t, err)
	assert.Equal(t, "partner-rewe", got.PartnerID)
	assert.Equal(t, model.MatchedByAuto, got.PartnerMatchedBy)

	// Assigned rows, auto included, are skipped by the backfill pass.
	keptAuto, err := db.Storage.GetTransaction(ctx, "txn-auto")
	require.NoError(t, err)
	assert.Equal(t, "partner-deko", keptAuto.PartnerID)
	assert.Empty(t, keptAuto.PartnerSuggestions)
}

func TestMatcher_RequiresUserID(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	m := newTestMatcher(db)

	var userErr *common.UserError
	_, err := m.MatchPartners(ctx, "", nil)
	require.ErrorAs(t, err, &userErr)
	_, err = m.MatchCategories(ctx, "", nil)
	require.ErrorAs(t, err, &userErr)
	_, err = m.ApplyPatterns(ctx, "")
	require.ErrorAs(t, err, &userErr)
	_, err = m.FindTransactionMatchesForFile(ctx, "", testutil.ReceiptFile("file-1", "ACME GmbH"), nil, "", 0)
	require.ErrorAs(t, err, &userErr)
}

func TestMatchPartners_ReportsProgress(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedPartnerWithPatterns(t, db, testutil.UserPartner("partner-rewe", "REWE Markt"),
		model.LearnedPattern{Pattern: "rewe*", Confidence: 95})
	db.SeedTransactions(ctx, testutil.BankTransactions(3)...)

	var ticks []int
	m := NewMatcher(db.Storage, nil, Options{
		Progress: func(processed int) { ticks = append(ticks, processed) },
	}, discardLogger())

	stats, err := m.MatchPartners(ctx, testutil.FixtureUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, []int{1, 2, 3}, ticks)
}
