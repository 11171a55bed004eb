package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mmp-tracker/internal/budget"
	"mmp-tracker/internal/event"
	"mmp-tracker/internal/export"
	"mmp-tracker/internal/metrics"
	"mmp-tracker/internal/model"
	"mmp-tracker/pkg/apierror"
)

// MMPReader resolves the MMP file a budget belongs to.
type MMPReader interface {
	Get(ctx context.Context, id string) (model.MMPFile, error)
}

type BudgetService struct {
	store   BudgetStore
	mmps    MMPReader
	audit   *AuditService
	bus     event.Bus
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewBudgetService(store BudgetStore, mmps MMPReader, audit *AuditService, bus event.Bus, m *metrics.Metrics) *BudgetService {
	return &BudgetService{
		store:   store,
		mmps:    mmps,
		audit:   audit,
		bus:     bus,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *BudgetService) CreateProjectBudget(ctx context.Context, actor model.AuditActor, req model.CreateProjectBudgetRequest) (model.ProjectBudget, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.ProjectBudget{}, apierror.ValidationFailed("name is required", "")
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return model.ProjectBudget{}, apierror.ValidationFailed("project_id is required", "")
	}
	period, err := parsePeriod(req.Period)
	if err != nil {
		return model.ProjectBudget{}, err
	}
	total, err := budget.ParsePositiveCents(req.TotalBudget)
	if err != nil {
		return model.ProjectBudget{}, budgetError("total_budget", err)
	}
	breakdown, err := budget.ParseBreakdown(req.CategoryBreakdown)
	if err != nil {
		return model.ProjectBudget{}, budgetError("category_breakdown", err)
	}

	now := s.now()
	p := model.ProjectBudget{
		ID:                uuid.NewString(),
		ProjectID:         strings.TrimSpace(req.ProjectID),
		Name:              name,
		Period:            period,
		Ledger:            model.Ledger{AllocatedBudgetCents: total},
		CategoryBreakdown: breakdown,
		CreatedBy:         actorLabel(actor),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	p.Status = budget.Recompute(&p.Ledger, model.BudgetActive)

	txn := s.transaction(model.BudgetKindProject, p.ID, model.TransactionAllocation, total, "", "Initial project allocation", actor)
	if err := s.store.CreateProjectBudget(ctx, p, txn); err != nil {
		return model.ProjectBudget{}, fmt.Errorf("create project budget: %w", err)
	}

	s.metrics.BudgetMovement(string(model.TransactionAllocation), total)
	s.record(ctx, actor, "budget_create", p.ID, fmt.Sprintf("Created project budget %s (SDG %s)", p.Name, budget.FormatCents(total)), nil)
	s.publish(event.TypeBudgetCreated, actor, "", p)
	return p, nil
}

func (s *BudgetService) ListProjectBudgets(ctx context.Context) ([]model.ProjectBudget, error) {
	return s.store.ListProjectBudgets(ctx)
}

// CreateMMPBudget allocates a budget to an MMP file. A category breakdown above the
// allocation, or an allocation above what the project budget has left, is accepted with
// warnings.
func (s *BudgetService) CreateMMPBudget(ctx context.Context, actor model.AuditActor, req model.CreateMMPBudgetRequest) (model.MMPBudgetResult, error) {
	fileID := strings.TrimSpace(req.MMPFileID)
	if fileID == "" {
		return model.MMPBudgetResult{}, apierror.ValidationFailed("mmp_file_id is required", "")
	}
	if req.TotalSites < 0 {
		return model.MMPBudgetResult{}, apierror.ValidationFailed("total_sites must not be negative", "")
	}
	allocated, err := budget.ParseCents(req.AllocatedBudget)
	if err != nil {
		return model.MMPBudgetResult{}, budgetError("allocated_budget", err)
	}
	breakdown, err := budget.ParseBreakdown(req.CategoryBreakdown)
	if err != nil {
		return model.MMPBudgetResult{}, budgetError("category_breakdown", err)
	}
	warnings, err := budget.ValidateAllocation(allocated, breakdown)
	if err != nil {
		return model.MMPBudgetResult{}, budgetError("allocated_budget", err)
	}
	source, err := parseSource(req.SourceType, req.ProjectBudgetID != "")
	if err != nil {
		return model.MMPBudgetResult{}, err
	}

	file, err := s.mmps.Get(ctx, fileID)
	if err != nil {
		return model.MMPBudgetResult{}, err
	}
	sites := req.TotalSites
	if sites == 0 {
		sites = file.TotalSiteCount()
	}

	var project *model.ProjectBudget
	if id := strings.TrimSpace(req.ProjectBudgetID); id != "" {
		p, err := s.store.GetProjectBudget(ctx, id)
		if err != nil {
			return model.MMPBudgetResult{}, err
		}
		if free := p.AllocatedBudgetCents - p.CommittedBudgetCents; allocated > free {
			warnings = append(warnings, fmt.Sprintf("allocation exceeds uncommitted project budget by SDG %s", budget.FormatCents(allocated-free)))
		}
		project = &p
	}

	now := s.now()
	b := model.MMPBudget{
		ID:                      uuid.NewString(),
		MMPFileID:               file.ID,
		Ledger:                  model.Ledger{AllocatedBudgetCents: allocated},
		TotalSites:              sites,
		AverageCostPerSiteCents: budget.AverageCostPerSite(allocated, sites),
		CategoryBreakdown:       breakdown,
		SourceType:              source,
		Notes:                   strings.TrimSpace(req.Notes),
		CreatedBy:               actorLabel(actor),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if project != nil {
		b.ProjectBudgetID = project.ID
	}
	b.Status = budget.Recompute(&b.Ledger, model.BudgetActive)

	txn := s.transaction(model.BudgetKindMMP, b.ID, model.TransactionAllocation, allocated, "", "Initial MMP allocation", actor)
	if err := s.store.CreateMMPBudget(ctx, b, txn); err != nil {
		return model.MMPBudgetResult{}, fmt.Errorf("create mmp budget: %w", err)
	}
	if project != nil {
		project.CommittedBudgetCents += allocated
		project.UpdatedAt = now
		s.updateProject(ctx, *project, nil)
	}

	s.metrics.BudgetMovement(string(model.TransactionAllocation), allocated)
	s.record(ctx, actor, "budget_create", b.ID,
		fmt.Sprintf("Allocated SDG %s to %s", budget.FormatCents(allocated), file.MMPID),
		map[string]any{"mmp_id": file.MMPID, "warnings": warnings})
	s.publish(event.TypeBudgetCreated, actor, file.Hub, b)

	return model.MMPBudgetResult{Budget: b, Warnings: warnings}, nil
}

func (s *BudgetService) ListMMPBudgets(ctx context.Context, mmpFileID string) ([]model.MMPBudget, error) {
	return s.store.ListMMPBudgets(ctx, strings.TrimSpace(mmpFileID))
}

func (s *BudgetService) TopUp(ctx context.Context, actor model.AuditActor, kind model.BudgetKind, id string, req model.BudgetMovementRequest) (any, error) {
	return s.move(ctx, actor, kind, id, model.TransactionTopUp, req)
}

// Spend records spending against a budget. Spending beyond the allocation is allowed and
// marks the budget exceeded.
func (s *BudgetService) Spend(ctx context.Context, actor model.AuditActor, kind model.BudgetKind, id string, req model.BudgetMovementRequest) (any, error) {
	return s.move(ctx, actor, kind, id, model.TransactionSpend, req)
}

func (s *BudgetService) Transactions(ctx context.Context, kind model.BudgetKind, id string) ([]model.BudgetTransaction, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, kind, id)
}

func (s *BudgetService) Summary(ctx context.Context) (model.BudgetSummary, error) {
	projects, err := s.store.ListProjectBudgets(ctx)
	if err != nil {
		return model.BudgetSummary{}, err
	}
	mmps, err := s.store.ListMMPBudgets(ctx, "")
	if err != nil {
		return model.BudgetSummary{}, err
	}
	return budget.Summarize(projects, mmps), nil
}

func (s *BudgetService) Export(ctx context.Context) (ExportResult, error) {
	projects, err := s.store.ListProjectBudgets(ctx)
	if err != nil {
		return ExportResult{}, err
	}
	mmps, err := s.store.ListMMPBudgets(ctx, "")
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	count, err := export.BudgetsCSV(&buf, projects, mmps)
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		Data:        buf.Bytes(),
		Filename:    export.Filename("budget-report", "csv", s.now()),
		ContentType: "text/csv; charset=utf-8",
		Count:       count,
	}, nil
}

func (s *BudgetService) move(ctx context.Context, actor model.AuditActor, kind model.BudgetKind, id string, txType model.TransactionType, req model.BudgetMovementRequest) (any, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	cents, err := budget.ParsePositiveCents(req.Amount)
	if err != nil {
		return nil, budgetError("amount", err)
	}
	category := model.BudgetCategory(strings.ToLower(strings.TrimSpace(req.Category)))
	if category != "" && !category.Valid() {
		return nil, apierror.ValidationFailed("unknown budget category", req.Category)
	}

	apply := budget.TopUp
	evt, action := event.TypeBudgetTopUp, "budget_top_up"
	if txType == model.TransactionSpend {
		apply = budget.Spend
		evt, action = event.TypeBudgetSpend, "budget_spend"
	}
	txn := s.transaction(kind, id, txType, cents, category, strings.TrimSpace(req.Description), actor)
	description := fmt.Sprintf("%s SDG %s on %s budget %s", movementVerb(txType), budget.FormatCents(cents), kind, id)

	if kind == model.BudgetKindProject {
		p, err := s.store.GetProjectBudget(ctx, id)
		if err != nil {
			return nil, err
		}
		if p.Status, err = apply(&p.Ledger, p.Status, cents); err != nil {
			return nil, budgetError("amount", err)
		}
		p.UpdatedAt = s.now()
		if err := s.store.UpdateProjectBudget(ctx, p, &txn); err != nil {
			return nil, fmt.Errorf("update project budget: %w", err)
		}
		s.metrics.BudgetMovement(string(txType), cents)
		s.record(ctx, actor, action, p.ID, description, nil)
		s.publish(evt, actor, "", p)
		return p, nil
	}

	b, err := s.store.GetMMPBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status, err = apply(&b.Ledger, b.Status, cents); err != nil {
		return nil, budgetError("amount", err)
	}
	b.UpdatedAt = s.now()
	if err := s.store.UpdateMMPBudget(ctx, b, &txn); err != nil {
		return nil, fmt.Errorf("update mmp budget: %w", err)
	}
	s.rollUp(ctx, b, txType, cents)

	hub := ""
	if file, err := s.mmps.Get(ctx, b.MMPFileID); err == nil {
		hub = file.Hub
	}
	s.metrics.BudgetMovement(string(txType), cents)
	s.record(ctx, actor, action, b.ID, description, map[string]any{"mmp_file_id": b.MMPFileID})
	s.publish(evt, actor, hub, b)
	return b, nil
}

// rollUp mirrors MMP budget movements onto the funding project budget: top-ups raise the
// committed amount and spending counts against the project.
func (s *BudgetService) rollUp(ctx context.Context, b model.MMPBudget, txType model.TransactionType, cents int64) {
	if b.ProjectBudgetID == "" {
		return
	}
	p, err := s.store.GetProjectBudget(ctx, b.ProjectBudgetID)
	if err != nil {
		slog.Warn("project budget roll-up skipped", "project_budget_id", b.ProjectBudgetID, "error", err)
		return
	}
	switch txType {
	case model.TransactionTopUp:
		p.CommittedBudgetCents, err = budget.AddCents(p.CommittedBudgetCents, cents)
	case model.TransactionSpend:
		p.Status, err = budget.Spend(&p.Ledger, p.Status, cents)
	}
	if err != nil {
		slog.Warn("project budget roll-up skipped", "project_budget_id", b.ProjectBudgetID, "error", err)
		return
	}
	p.UpdatedAt = s.now()
	s.updateProject(ctx, p, nil)
}

func (s *BudgetService) updateProject(ctx context.Context, p model.ProjectBudget, txn *model.BudgetTransaction) {
	if err := s.store.UpdateProjectBudget(ctx, p, txn); err != nil {
		slog.Warn("project budget not updated", "project_budget_id", p.ID, "error", err)
	}
}

func (s *BudgetService) transaction(kind model.BudgetKind, id string, txType model.TransactionType, cents int64, category model.BudgetCategory, description string, actor model.AuditActor) model.BudgetTransaction {
	return model.BudgetTransaction{
		ID:          uuid.NewString(),
		BudgetKind:  kind,
		BudgetID:    id,
		Type:        txType,
		AmountCents: cents,
		Category:    category,
		Description: description,
		CreatedBy:   actorLabel(actor),
		CreatedAt:   s.now(),
	}
}

func (s *BudgetService) record(ctx context.Context, actor model.AuditActor, action, resource, description string, metadata map[string]any) {
	s.audit.Record(ctx, model.AuditEntry{
		Action:      action,
		Category:    CategoryBudget,
		Description: description,
		Actor:       actor,
		Resource:    resource,
		Metadata:    metadata,
	})
}

func (s *BudgetService) publish(t event.Type, actor model.AuditActor, hub string, payload any) {
	if s.bus != nil {
		s.bus.Publish(event.New(t, actor.UserID, hub, payload))
	}
}

func movementVerb(t model.TransactionType) string {
	if t == model.TransactionSpend {
		return "Spent"
	}
	return "Topped up"
}

func validKind(kind model.BudgetKind) error {
	if kind != model.BudgetKindProject && kind != model.BudgetKindMMP {
		return apierror.BadRequest("budget kind must be 'project' or 'mmp'", string(kind))
	}
	return nil
}

func parsePeriod(raw string) (model.BudgetPeriod, error) {
	p := model.BudgetPeriod(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case "":
		return model.PeriodProjectLifetime, nil
	case model.PeriodMonthly, model.PeriodQuarterly, model.PeriodAnnual, model.PeriodProjectLifetime:
		return p, nil
	}
	return "", apierror.ValidationFailed("unknown budget period", raw)
}

func parseSource(raw string, fromProject bool) (model.BudgetSource, error) {
	src := model.BudgetSource(strings.ToLower(strings.TrimSpace(raw)))
	switch src {
	case "":
		if fromProject {
			return model.SourceProjectAllocation, nil
		}
		return model.SourceAdditionalFunding, nil
	case model.SourceProjectAllocation, model.SourceTopUp, model.SourceAdditionalFunding, model.SourceReallocation:
		return src, nil
	}
	return "", apierror.ValidationFailed("unknown budget source type", raw)
}

// budgetError turns amount parsing and allocation errors into 422 responses.
func budgetError(field string, err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return apierror.ValidationFailed(err.Error(), field)
}
