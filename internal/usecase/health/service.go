package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means searches still answer, through the fallback chain.
	Degraded Status = "degraded"
	// Unhealthy means the index store is unreachable and no search can run.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckExhausted indicates a spent budget.
	CheckExhausted CheckResult = "exhausted"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase  = "database"
	ComponentEmbedding = "embedding"
	ComponentBudget    = "embedding_budget"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	budget    BudgetReader
}

// New creates a Service. embedding and budget can be nil.
func New(db DBPinger, embedding EmbeddingChecker, budget BudgetReader) *Service {
	return &Service{db: db, embedding: embedding, budget: budget}
}

// Check runs health checks against all components.
// Embedding problems degrade, a database failure is fatal.
func (s *Service) Check(ctx context.Context) Report {
	log := logger.FromContext(ctx)
	checks := make(map[string]CheckResult, 3)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		log.Warn("Health check failed", zap.String("component", ComponentDatabase), zap.Error(err))
		checks[ComponentDatabase] = CheckError
		status = Unhealthy
	} else {
		checks[ComponentDatabase] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			log.Warn("Health check failed", zap.String("component", ComponentEmbedding), zap.Error(err))
			checks[ComponentEmbedding] = CheckError
			status = worst(status, Degraded)
		} else {
			checks[ComponentEmbedding] = CheckOK
		}
	}

	if s.budget != nil {
		if s.budget.Exhausted() {
			checks[ComponentBudget] = CheckExhausted
			status = worst(status, Degraded)
		} else {
			checks[ComponentBudget] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}

func worst(a, b Status) Status {
	if a == Unhealthy || b == Unhealthy {
		return Unhealthy
	}
	if a == Degraded || b == Degraded {
		return Degraded
	}
	return Healthy
}
