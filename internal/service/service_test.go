package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerops/incentive-engine/internal/cache"
	"github.com/dealerops/incentive-engine/internal/commission"
	"github.com/dealerops/incentive-engine/internal/ingest"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/performance"
	"github.com/dealerops/incentive-engine/internal/targets"
	"github.com/dealerops/incentive-engine/internal/timeseries"
)

func f(v float64) *float64 { return &v }

type fixture struct {
	svc    *Service
	store  *timeseries.MemoryStore
	storeA uuid.UUID
	storeB uuid.UUID
	svcA   models.Department
	partsA models.Department
	svcB   models.Department
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		store:  timeseries.NewMemoryStore(),
		storeA: uuid.New(),
		storeB: uuid.New(),
	}
	fx.svcA = models.Department{ID: uuid.New(), StoreID: fx.storeA, Name: "Service"}
	fx.partsA = models.Department{ID: uuid.New(), StoreID: fx.storeA, Name: "Parts"}
	fx.svcB = models.Department{ID: uuid.New(), StoreID: fx.storeB, Name: "Service"}
	for _, d := range []models.Department{fx.svcA, fx.partsA, fx.svcB} {
		fx.store.AddDepartment(d)
	}

	require.NoError(t, fx.store.UpsertFinancialEntries(context.Background(), []models.FinancialEntry{
		{DepartmentID: fx.svcA.ID, MetricKey: "labor_revenue", Month: "2024-03", Value: f(25000)},
		{DepartmentID: fx.svcB.ID, MetricKey: "labor_revenue", Month: "2024-03", Value: f(15000)},
		{DepartmentID: fx.partsA.ID, MetricKey: "labor_revenue", Month: "2024-03", Value: f(1000)},
	}))

	fx.svc = New(fx.store, fx.store, fx.store, fx.store, cache.New(fx.store), nil)
	return fx
}

func TestAggregate_GroupRollup(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	all, err := fx.svc.Aggregate(ctx, AggregateQuery{
		StoreIDs:  []uuid.UUID{fx.storeA, fx.storeB},
		MetricKey: "labor_revenue",
		Months:    []string{"2024-02", "2024-03"},
	})
	require.NoError(t, err)
	assert.Equal(t, 41000.0, all.Values["2024-03"])
	assert.Equal(t, 0.0, all.Values["2024-02"])
	assert.False(t, all.HasData("2024-02"))

	service, err := fx.svc.Aggregate(ctx, AggregateQuery{
		StoreIDs:        []uuid.UUID{fx.storeA, fx.storeB},
		DepartmentNames: []string{"service"},
		MetricKey:       "labor_revenue",
		Months:          []string{"2024-03"},
	})
	require.NoError(t, err)
	assert.Equal(t, 40000.0, service.Values["2024-03"])
	assert.Equal(t, 2, service.Reporting["2024-03"])
}

func TestAggregate_EmptyStoreSet(t *testing.T) {
	fx := newFixture(t)

	r, err := fx.svc.Aggregate(context.Background(), AggregateQuery{
		MetricKey: "labor_revenue",
		Months:    []string{"2024-03"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Values["2024-03"])
}

func TestAggregate_RejectsBadInput(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Aggregate(ctx, AggregateQuery{MetricKey: "labor_revenue", Months: []string{"2024-3"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.Aggregate(ctx, AggregateQuery{Months: []string{"2024-03"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCommissionReport_EndToEnd(t *testing.T) {
	fx := newFixture(t)
	owner := uuid.New()

	fx.store.AddScenario(models.PayplanScenario{
		ID:               uuid.New(),
		OwnerUserID:      owner,
		Name:             "Service Advisor",
		BaseSalaryAnnual: 60000,
		Rules:            []models.CommissionRule{{SourceMetric: "labor_revenue", Rate: 0.03}},
		DepartmentNames:  []string{"Service"},
		IsActive:         true,
	})
	fx.store.AddScenario(models.PayplanScenario{
		ID: uuid.New(), OwnerUserID: owner, Name: "Draft", BaseSalaryAnnual: 1,
		Rules: []models.CommissionRule{{SourceMetric: "labor_revenue", Rate: 1}},
	})
	fx.store.AddScenario(models.PayplanScenario{
		ID: uuid.New(), OwnerUserID: uuid.New(), Name: "Someone else", IsActive: true,
		Rules: []models.CommissionRule{{SourceMetric: "labor_revenue", Rate: 1}},
	})

	report, err := fx.svc.CommissionReport(context.Background(), CommissionQuery{
		OwnerUserID: owner,
		StoreIDs:    []uuid.UUID{fx.storeA, fx.storeB},
		Months:      []string{"2024-02", "2024-03"},
	})
	require.NoError(t, err)
	require.Len(t, report.Scenarios, 1, "inactive and foreign scenarios are not evaluated")

	result := report.Scenarios[0]
	assert.Equal(t, "Service Advisor", result.ScenarioName)
	require.Len(t, result.Rows, 3)

	byKind := make(map[commission.RowKind]commission.Row)
	for _, r := range result.Rows {
		byKind[r.Kind] = r
	}
	assert.InDelta(t, 1200, byKind[commission.KindCommission].Value("2024-03"), 1e-9)
	assert.InDelta(t, 0, byKind[commission.KindCommission].Value("2024-02"), 1e-9)
	assert.InDelta(t, 5000, byKind[commission.KindBaseSalary].Value("2024-03"), 1e-9)
	assert.InDelta(t, 6200, byKind[commission.KindTotalComp].Value("2024-03"), 1e-9)
	assert.InDelta(t, 11200, byKind[commission.KindTotalComp].Total, 1e-9)
}

func TestCommissionReport_DepartmentScopesKeepOrder(t *testing.T) {
	fx := newFixture(t)
	owner := uuid.New()
	add := func(name string, rate float64, depts ...string) {
		fx.store.AddScenario(models.PayplanScenario{
			ID: uuid.New(), OwnerUserID: owner, Name: name, IsActive: true,
			Rules:           []models.CommissionRule{{SourceMetric: "labor_revenue", Rate: rate}},
			DepartmentNames: depts,
		})
	}
	add("Whole store", 0.01)
	add("Parts manager", 0.1, "Parts")
	add("Service advisor", 0.02, "service")
	add("Service writer", 0.04, "Service")

	report, err := fx.svc.CommissionReport(context.Background(), CommissionQuery{
		OwnerUserID: owner,
		StoreIDs:    []uuid.UUID{fx.storeA},
		Months:      []string{"2024-03"},
	})
	require.NoError(t, err)
	require.Len(t, report.Scenarios, 4)

	want := []struct {
		name       string
		commission float64
	}{
		{"Whole store", 260},
		{"Parts manager", 100},
		{"Service advisor", 500},
		{"Service writer", 1000},
	}
	for i, w := range want {
		result := report.Scenarios[i]
		assert.Equal(t, w.name, result.ScenarioName)
		require.NotEmpty(t, result.Rows)
		assert.InDelta(t, w.commission, result.Rows[0].Value("2024-03"), 1e-9, w.name)
	}
}

func TestCommissionReport_NoScenarios(t *testing.T) {
	fx := newFixture(t)

	report, err := fx.svc.CommissionReport(context.Background(), CommissionQuery{
		OwnerUserID: uuid.New(),
		StoreIDs:    []uuid.UUID{fx.storeA},
		Months:      []string{"2024-03"},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Scenarios)
}

func TestScorecard_ManualAndForecastTargets(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SetTarget(ctx, TargetInput{
		DepartmentID: fx.svcA.ID, MetricKey: "labor_revenue",
		Quarter: 1, Year: 2024, Value: 30000, Direction: models.DirectionAbove,
	})
	require.NoError(t, err)

	require.NoError(t, fx.store.UpsertFinancialEntries(ctx, []models.FinancialEntry{
		{DepartmentID: fx.svcA.ID, MetricKey: "customer_pay_hours", Month: "2024-01", Value: f(95)},
		{DepartmentID: fx.svcA.ID, MetricKey: "customer_pay_hours", Month: "2024-02", Value: f(120)},
	}))
	forecastID := uuid.New()
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		fx.store.AddForecastEntries(models.ForecastEntry{
			ForecastID: forecastID, DepartmentID: fx.svcA.ID, ForecastYear: 2024,
			MetricKey: "customer_pay_hours", Month: m, ForecastValue: f(100),
		})
	}
	fx.svc.Refresh(nil)

	card, err := fx.svc.Scorecard(ctx, ScorecardQuery{DepartmentID: fx.svcA.ID, Quarter: 1, Year: 2024})
	require.NoError(t, err)
	require.Len(t, card.Metrics, 2)

	hours := card.Metrics[0]
	assert.Equal(t, "customer_pay_hours", hours.MetricKey)
	assert.Equal(t, performance.StatusClose, hours.Months[0].Status)
	assert.Equal(t, performance.StatusMet, hours.Months[1].Status)
	assert.Equal(t, performance.StatusPending, hours.Months[2].Status)
	require.NotNil(t, hours.Quarter.Target)
	assert.Equal(t, targets.SourceForecast, hours.Quarter.Target.Source)
	assert.Equal(t, 300.0, hours.Quarter.Target.Value)
	assert.Equal(t, performance.StatusMissed, hours.Quarter.Status)

	labor := card.Metrics[1]
	assert.Equal(t, "labor_revenue", labor.MetricKey)
	assert.Equal(t, performance.StatusPending, labor.Months[0].Status, "no data in January")
	assert.Equal(t, performance.StatusMissed, labor.Months[2].Status)
	require.NotNil(t, labor.Quarter.Target)
	assert.Equal(t, targets.SourceManual, labor.Quarter.Target.Source)
	require.NotNil(t, labor.Quarter.Actual)
	assert.Equal(t, 25000.0, *labor.Quarter.Actual)
	assert.Equal(t, 90000.0, labor.Quarter.Target.Value)
	assert.Equal(t, performance.StatusMissed, labor.Quarter.Status)
}

func TestScorecard_ExplicitTargetAgreesAcrossMonthsAndQuarter(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SetTarget(ctx, TargetInput{
		DepartmentID: fx.svcA.ID, MetricKey: "policy_expense",
		Quarter: 1, Year: 2024, Value: 100, Direction: models.DirectionBelow,
	})
	require.NoError(t, err)
	var rows []models.FinancialEntry
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		rows = append(rows, models.FinancialEntry{DepartmentID: fx.svcA.ID, MetricKey: "policy_expense", Month: m, Value: f(90)})
	}
	require.NoError(t, fx.store.UpsertFinancialEntries(ctx, rows))
	fx.svc.Refresh(nil)

	card, err := fx.svc.Scorecard(ctx, ScorecardQuery{
		DepartmentID: fx.svcA.ID, Quarter: 1, Year: 2024, MetricKeys: []string{"policy_expense"},
	})
	require.NoError(t, err)
	require.Len(t, card.Metrics, 1)

	score := card.Metrics[0]
	for _, m := range score.Months {
		assert.Equal(t, performance.StatusMet, m.Status, m.Period)
	}
	require.NotNil(t, score.Quarter.Actual)
	require.NotNil(t, score.Quarter.Target)
	assert.Equal(t, 270.0, *score.Quarter.Actual)
	assert.Equal(t, 300.0, score.Quarter.Target.Value)
	assert.Equal(t, performance.StatusMet, score.Quarter.Status)
}

func TestScorecard_UnknownDepartment(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Scorecard(context.Background(), ScorecardQuery{DepartmentID: uuid.New(), Quarter: 1, Year: 2024})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRockReport_SubMetricRock(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.store.UpsertFinancialEntries(ctx, []models.FinancialEntry{
		{DepartmentID: fx.svcA.ID, MetricKey: "sub:gross_profit:3:Shop Supplies", Month: "2024-01", Value: f(450)},
		{DepartmentID: fx.svcA.ID, MetricKey: "sub:gross_profit:3:Shop Supplies", Month: "2024-02", Value: f(600)},
		{DepartmentID: fx.svcA.ID, MetricKey: "sub:gross_profit:Shop Supplies", Month: "2024-03", Value: f(300)},
	}))
	fx.store.AddForecastEntries(models.ForecastEntry{
		ForecastID: uuid.New(), DepartmentID: fx.svcA.ID, ForecastYear: 2024,
		MetricKey: "sub:gross_profit:1:Shop Supplies", Month: "2024-03", ForecastValue: f(400),
	})

	kind := models.LinkedSubMetric
	parent, name := "gross_profit", "Shop Supplies"
	linked := models.Rock{
		ID: uuid.New(), DepartmentID: fx.svcA.ID, Year: 2024, Quarter: 1,
		Title: "Cut shop supply cost", LinkedMetricType: &kind,
		LinkedParentMetricKey: &parent, LinkedSubmetricName: &name,
		TargetDirection: models.DirectionBelow,
	}
	fx.store.AddRock(linked,
		models.RockMonthlyTarget{ID: uuid.New(), RockID: linked.ID, Month: "2024-01", TargetValue: 500},
		models.RockMonthlyTarget{ID: uuid.New(), RockID: linked.ID, Month: "2024-02", TargetValue: 500},
	)
	fx.store.AddRock(models.Rock{ID: uuid.New(), DepartmentID: fx.svcA.ID, Year: 2024, Quarter: 1, Title: "Hire a porter"})

	report, err := fx.svc.RockReport(ctx, fx.svcA.ID, 1, 2024)
	require.NoError(t, err)
	require.Len(t, report.Rocks, 2)

	var score, plain RockScore
	for _, r := range report.Rocks {
		if r.Linked {
			score = r
		} else {
			plain = r
		}
	}
	assert.Nil(t, plain.Quarter, "unlinked rocks are not scored")

	require.Len(t, score.Months, 3)
	assert.Equal(t, performance.StatusMet, score.Months[0].Status)
	assert.Equal(t, performance.StatusMissed, score.Months[1].Status)
	assert.Equal(t, performance.StatusMet, score.Months[2].Status)
	require.NotNil(t, score.Months[2].Target)
	assert.Equal(t, targets.SourceForecast, score.Months[2].Target.Source)

	require.NotNil(t, score.Quarter)
	require.NotNil(t, score.Quarter.Target)
	assert.Equal(t, 1000.0, score.Quarter.Target.Value)
	assert.Equal(t, performance.StatusMissed, score.Quarter.Status)
	assert.InDelta(t, 1000.0/1350.0*100, score.Rock.ProgressPercentage, 1e-9)
}

func TestSetTarget_SubMetricEncodingAndValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	order := 2
	target, err := fx.svc.SetTarget(ctx, TargetInput{
		DepartmentID: fx.svcA.ID, ParentKey: "gross_profit", OrderIndex: &order, SubmetricName: "Shop Supplies",
		Quarter: 2, Year: 2024, Value: 1500, Direction: models.DirectionBelow,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub:gross_profit:2:Shop Supplies", target.MetricKey)

	again, err := fx.svc.SetTarget(ctx, TargetInput{
		DepartmentID: fx.svcA.ID, MetricKey: target.MetricKey,
		Quarter: 2, Year: 2024, Value: 1400, Direction: models.DirectionBelow,
	})
	require.NoError(t, err)
	assert.Equal(t, target.ID, again.ID, "upsert replaces in place")

	_, err = fx.svc.SetTarget(ctx, TargetInput{DepartmentID: fx.svcA.ID, MetricKey: "x", Quarter: 5, Year: 2024, Direction: models.DirectionAbove})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.SetTarget(ctx, TargetInput{DepartmentID: fx.svcA.ID, MetricKey: "x", Quarter: 1, Year: 2024, Direction: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.SetTarget(ctx, TargetInput{DepartmentID: fx.svcA.ID, ParentKey: "gross_profit", SubmetricName: "x", Quarter: 1, Year: 2024, Direction: models.DirectionAbove})
	assert.ErrorIs(t, err, ErrInvalidInput, "order index is required")

	_, err = fx.svc.SetTarget(ctx, TargetInput{DepartmentID: uuid.New(), MetricKey: "x", Quarter: 1, Year: 2024, Direction: models.DirectionAbove})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportEntries_InvalidatesCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	q := AggregateQuery{StoreIDs: []uuid.UUID{fx.storeA}, DepartmentNames: []string{"Service"}, MetricKey: "labor_revenue", Months: []string{"2024-03"}}

	before, err := fx.svc.Aggregate(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, before.Values["2024-03"])

	n, err := fx.svc.ImportEntries(ctx, fx.svcA.ID, []ingest.Row{
		{Line: 2, MetricKey: "labor_revenue", Month: "2024-03", Value: f(1)},
		{Line: 3, MetricKey: "labor_revenue", Month: "2024-03", Value: f(26000)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "duplicate cells collapse to the last line")

	after, err := fx.svc.Aggregate(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 26000.0, after.Values["2024-03"])
}

func TestScenarios_OwnerScoped(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	sc := &models.PayplanScenario{
		OwnerUserID:      owner,
		Name:             "  Parts Counter ",
		BaseSalaryAnnual: 36000,
		Rules:            []models.CommissionRule{{SourceMetric: "parts_gross", Rate: 0.02, MinThreshold: f(1000)}},
		IsActive:         true,
	}
	require.NoError(t, fx.svc.CreateScenario(ctx, sc))
	assert.NotEqual(t, uuid.Nil, sc.ID)
	assert.Equal(t, "Parts Counter", sc.Name)

	_, err := fx.svc.GetScenario(ctx, stranger, sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	foreign := *sc
	foreign.OwnerUserID = stranger
	assert.ErrorIs(t, fx.svc.UpdateScenario(ctx, &foreign), ErrNotFound)

	sc.BaseSalaryAnnual = 40000
	require.NoError(t, fx.svc.UpdateScenario(ctx, sc))
	got, err := fx.svc.GetScenario(ctx, owner, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 40000.0, got.BaseSalaryAnnual)

	assert.ErrorIs(t, fx.svc.DeleteScenario(ctx, stranger, sc.ID), ErrNotFound)
	require.NoError(t, fx.svc.DeleteScenario(ctx, owner, sc.ID))

	list, err := fx.svc.ListScenarios(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateScenario_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	tests := []struct {
		name string
		sc   models.PayplanScenario
	}{
		{"missing name", models.PayplanScenario{OwnerUserID: owner}},
		{"negative salary", models.PayplanScenario{OwnerUserID: owner, Name: "x", BaseSalaryAnnual: -1}},
		{"empty source metric", models.PayplanScenario{OwnerUserID: owner, Name: "x", Rules: []models.CommissionRule{{Rate: 0.1}}}},
		{"malformed source metric", models.PayplanScenario{OwnerUserID: owner, Name: "x", Rules: []models.CommissionRule{{SourceMetric: "sub:x", Rate: 0.1}}}},
		{"inverted thresholds", models.PayplanScenario{OwnerUserID: owner, Name: "x", Rules: []models.CommissionRule{{SourceMetric: "a", Rate: 0.1, MinThreshold: f(10), MaxThreshold: f(5)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := tt.sc
			assert.ErrorIs(t, fx.svc.CreateScenario(ctx, &sc), ErrInvalidInput)
		})
	}
}
