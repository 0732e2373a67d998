package ports

import "github.com/atvirokodosprendimai/tabcheck/internal/core/domain"

// ValidationObserver receives run outcomes for instrumentation. Calls happen
// on the validating goroutine and must not block.
type ValidationObserver interface {
	ObserveRun(run domain.ValidationRun, report domain.Report)
	ObserveSuperseded(tenantID, schemaName string)
	ObserveDispatch(outcome string)
}

// NopObserver discards every observation.
type NopObserver struct{}

func (NopObserver) ObserveRun(domain.ValidationRun, domain.Report) {}
func (NopObserver) ObserveSuperseded(string, string)               {}
func (NopObserver) ObserveDispatch(string)                         {}
