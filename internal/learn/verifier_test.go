package learn

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/testutil"
)

func TestVerifier_DryRun(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedTransactions(ctx, testutil.BankTransactions(100)...)
	rewe1 := testutil.BankTransaction("rewe-1", "REWE SAGT DANKE 44123", "Kartenzahlung ELV")
	rewe2 := testutil.BankTransaction("rewe-2", "REWE Markt GmbH", "Lebensmittel")
	db.SeedTransactions(ctx, rewe1, rewe2)

	// rewe-2 already belongs to a different partner.
	db.SeedPartners(ctx, testutil.UserPartner("partner-other", "Someone Else"))
	assigned := rewe2
	assigned.PartnerID = "partner-other"
	assigned.PartnerType = model.PartnerTypeUser
	assigned.PartnerMatchConfidence = 100
	assigned.PartnerMatchedBy = model.MatchedByManual
	db.AssignTransactions(ctx, assigned)

	v := NewVerifier(db.Storage, 0, discardLogger())
	reports, err := v.DryRun(ctx, testutil.FixtureUserID, "partner-rewe", []Candidate{
		{Pattern: "rewe*", Confidence: 92},
		{Pattern: "counterparty*", Confidence: 90},
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	rewe := reports[0]
	assert.Equal(t, "rewe*", rewe.Pattern)
	assert.Equal(t, 2, rewe.Matches)
	assert.Equal(t, 1, rewe.Conflicts)
	assert.Equal(t, 102, rewe.Scanned)
	assert.False(t, rewe.Suspicious)
	assert.Len(t, rewe.Samples, 2)

	broad := reports[1]
	assert.Equal(t, 100, broad.Matches)
	assert.Equal(t, 0, broad.Conflicts)
	assert.True(t, broad.Suspicious)
	assert.Len(t, broad.Samples, reportSampleCap)
}

func TestVerifier_DryRun_MatchCountThreshold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// 21 matches in a large corpus stay under the percentage threshold but
	// trip the absolute one.
	db.SeedTransactions(ctx, testutil.BankTransactions(800)...)
	rewe := make([]model.Transaction, 21)
	for i := range rewe {
		rewe[i] = testutil.BankTransaction(fmt.Sprintf("rewe-%02d", i+1), "REWE SAGT DANKE", "Kartenzahlung")
	}
	db.SeedTransactions(ctx, rewe...)

	v := NewVerifier(db.Storage, 0, discardLogger())
	reports, err := v.DryRun(ctx, testutil.FixtureUserID, "partner-rewe", []Candidate{
		{Pattern: "rewe*", Confidence: 92},
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 21, reports[0].Matches)
	assert.Less(t, reports[0].Percent, suspiciousPercent)
	assert.True(t, reports[0].Suspicious)
}

func TestVerifier_DryRun_HonorsScanCap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedTransactions(ctx, testutil.BankTransactions(30)...)

	v := NewVerifier(db.Storage, 10, discardLogger())
	reports, err := v.DryRun(ctx, testutil.FixtureUserID, "partner-x", []Candidate{
		{Pattern: "counterparty*", Confidence: 90},
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 10, reports[0].Scanned)
	assert.Equal(t, 10, reports[0].Matches)
}

func TestVerifier_DryRun_NoCandidates(t *testing.T) {
	db := testutil.SetupTestDB(t)

	v := NewVerifier(db.Storage, 0, discardLogger())
	reports, err := v.DryRun(context.Background(), testutil.FixtureUserID, "partner-x", nil)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestDropSuspicious(t *testing.T) {
	reports := []Report{
		{Candidate: Candidate{Pattern: "rewe*", Confidence: 92}, Matches: 3},
		{Candidate: Candidate{Pattern: "counterparty*", Confidence: 90}, Matches: 480, Suspicious: true},
	}

	kept := dropSuspicious(reports, discardLogger())
	assert.Equal(t, []Candidate{{Pattern: "rewe*", Confidence: 92}}, kept)
}

func TestApplyVerdicts(t *testing.T) {
	reports := []Report{
		{Candidate: Candidate{Pattern: "rewe*", Confidence: 92}},
		{Candidate: Candidate{Pattern: "edeka*", Confidence: 85}},
		{Candidate: Candidate{Pattern: "dm*", Confidence: 80}},
		{Candidate: Candidate{Pattern: "aldi*", Confidence: 75}},
		{Candidate: Candidate{Pattern: "lidl*", Confidence: 70}},
	}
	verdicts := []Verdict{
		{Pattern: "REWE*", Action: "reject", Reason: "too broad"},
		{Pattern: "edeka*", Action: "adjust", Confidence: 60},
		{Pattern: "dm*", Action: "adjust", Confidence: 30},
		{Pattern: "aldi*", Action: "approve"},
		{Pattern: "lidl*", Action: "escalate"},
	}

	got := applyVerdicts(reports, verdicts, discardLogger())

	want := []Candidate{
		{Pattern: "edeka*", Confidence: 60},
		{Pattern: "aldi*", Confidence: 75},
	}
	assert.Equal(t, want, got)
}

func TestApplyVerdicts_OmissionApproves(t *testing.T) {
	reports := []Report{
		{Candidate: Candidate{Pattern: "rewe*", Confidence: 92}, Suspicious: true},
		{Candidate: Candidate{Pattern: "edeka*", Confidence: 85}},
	}

	got := applyVerdicts(reports, nil, discardLogger())

	want := []Candidate{
		{Pattern: "rewe*", Confidence: 92},
		{Pattern: "edeka*", Confidence: 85},
	}
	assert.Equal(t, want, got)
}
