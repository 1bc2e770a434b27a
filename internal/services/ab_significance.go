package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	experimentsrepo "github.com/yungbote/astrolab-backend/internal/data/repos/experiments"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

type VariantOutcome struct {
	VariantName    string  `json:"variantName"`
	Participants   int64   `json:"participants"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
}

type TestResults struct {
	TestName          string           `json:"testName"`
	Variants          []VariantOutcome `json:"variants"`
	Winner            string           `json:"winner,omitempty"`
	ChiSquared        float64          `json:"chiSquared"`
	Confidence        float64          `json:"confidence"`
	Significant       bool             `json:"significant"`
	TotalParticipants int64            `json:"totalParticipants"`
	TotalConversions  int64            `json:"totalConversions"`
}

type SignificanceService interface {
	// Analyze summarizes per-variant outcomes for the named test and
	// estimates whether the leading variant is a statistically meaningful
	// winner. An approximation for dashboards, not a regulated claim.
	Analyze(ctx context.Context, tx *gorm.DB, testName string) (*TestResults, error)
}

type significanceService struct {
	db      *gorm.DB
	log     *logger.Logger
	tests   experimentsrepo.AbTestRepo
	assigns experimentsrepo.AbAssignmentRepo
}

func NewSignificanceService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tests experimentsrepo.AbTestRepo,
	assigns experimentsrepo.AbAssignmentRepo,
) SignificanceService {
	return &significanceService{
		db:      db,
		log:     baseLog.With("service", "SignificanceService"),
		tests:   tests,
		assigns: assigns,
	}
}

// Chi-squared critical values, bucketed by degrees of freedom (1, 2, 3+).
// These reproduce the historical reporting exactly: refining them would
// change previously reported outcomes. A statistic below the lowest entry
// maps to 0% confidence.
var chiSquaredCritical = map[int][]struct {
	Value      float64
	Confidence float64
}{
	1: {{10.828, 99.9}, {6.635, 99}, {3.841, 95}},
	2: {{13.816, 99.9}, {9.210, 99}, {5.991, 95}},
	3: {{16.266, 99.9}, {11.345, 99}, {7.815, 95}},
}

func confidenceFor(chiSquared float64, df int) float64 {
	if df < 1 {
		df = 1
	}
	if df > 3 {
		df = 3
	}
	for _, crit := range chiSquaredCritical[df] {
		if chiSquared >= crit.Value {
			return crit.Confidence
		}
	}
	return 0
}

func (s *significanceService) Analyze(ctx context.Context, tx *gorm.DB, testName string) (*TestResults, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	test, err := s.tests.GetByName(ctx, transaction, strings.TrimSpace(testName))
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, fmt.Errorf("%w: test %q", errs.ErrNotFound, testName)
	}

	stats, err := s.assigns.StatsByTestID(ctx, transaction, test.ID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]experimentsrepo.VariantStat, len(stats))
	for _, st := range stats {
		byName[st.VariantName] = st
	}

	// Variant order follows the test definition; that order is also the
	// documented winner tie-break. Assignments whose variant was renamed out
	// of the definition are appended after, in aggregate order.
	outcomes := make([]VariantOutcome, 0, len(test.Variants))
	seen := make(map[string]bool, len(test.Variants))
	for i := range test.Variants {
		name := test.Variants[i].Name
		seen[name] = true
		st := byName[name]
		outcomes = append(outcomes, outcomeFor(name, st.Participants, st.Conversions))
	}
	for _, st := range stats {
		if !seen[st.VariantName] {
			outcomes = append(outcomes, outcomeFor(st.VariantName, st.Participants, st.Conversions))
		}
	}

	res := &TestResults{
		TestName: test.Name,
		Variants: outcomes,
	}
	for i := range outcomes {
		res.TotalParticipants += outcomes[i].Participants
		res.TotalConversions += outcomes[i].Conversions
	}

	winnerIdx := -1
	bestRate := -1.0
	for i := range outcomes {
		if outcomes[i].ConversionRate > bestRate {
			bestRate = outcomes[i].ConversionRate
			winnerIdx = i
		}
	}
	if winnerIdx >= 0 {
		res.Winner = outcomes[winnerIdx].VariantName
	}

	res.ChiSquared = pearsonChiSquared(outcomes, res.TotalParticipants, res.TotalConversions)
	df := len(outcomes) - 1
	res.Confidence = confidenceFor(res.ChiSquared, df)
	res.Significant = res.Confidence >= 95
	return res, nil
}

func outcomeFor(name string, participants, conversions int64) VariantOutcome {
	out := VariantOutcome{
		VariantName:  name,
		Participants: participants,
		Conversions:  conversions,
	}
	if participants > 0 {
		out.ConversionRate = float64(conversions) / float64(participants)
	}
	return out
}

// pearsonChiSquared computes the statistic against the pooled expected
// conversion rate, two cells (converted, not converted) per variant.
// Degenerate pools (no participants, all converted, none converted) yield 0.
func pearsonChiSquared(outcomes []VariantOutcome, totalParticipants, totalConversions int64) float64 {
	if totalParticipants == 0 {
		return 0
	}
	pooled := float64(totalConversions) / float64(totalParticipants)
	if pooled <= 0 || pooled >= 1 {
		return 0
	}
	chi := 0.0
	for i := range outcomes {
		n := float64(outcomes[i].Participants)
		if n == 0 {
			continue
		}
		observedConv := float64(outcomes[i].Conversions)
		expectedConv := n * pooled
		expectedNon := n * (1 - pooled)
		dConv := observedConv - expectedConv
		dNon := (n - observedConv) - expectedNon
		chi += dConv * dConv / expectedConv
		chi += dNon * dNon / expectedNon
	}
	return chi
}
