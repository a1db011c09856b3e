package model

type OutcomeKind string

const (
	OutcomeSuccess    OutcomeKind = "success"
	OutcomeTransient  OutcomeKind = "transient"
	OutcomeValidation OutcomeKind = "validation"
	OutcomeRejected   OutcomeKind = "rejected"
)

// Outcome is the result of one call to the execution authority.
// Transient outcomes leave state unchanged; the next tick retries.
type Outcome struct {
	Kind    OutcomeKind
	Err     error
	TradeID string
	// Reason is the authority's explanation for a rejection.
	Reason string
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}
