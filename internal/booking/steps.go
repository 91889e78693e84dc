// Package booking holds the booking wizard: steps and their gates, the
// draft, pricing and submission with retries.
package booking

import "fmt"

// Step is one screen of a booking flow.
type Step string

const (
	StepService      Step = "service"
	StepDateTime     Step = "datetime"
	StepDetails      Step = "details"
	StepAddOns       Step = "addons"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"

	// Admin walk-in steps.
	StepCustomer Step = "customer"
	StepServices Step = "services"
	StepAssign   Step = "assign"
	StepConfirm  Step = "confirm"
)

// Variant names the app a flow belongs to.
type Variant string

const (
	VariantPublic Variant = "public"
	VariantMobile Variant = "mobile"
	VariantPortal Variant = "portal"
	VariantWalkIn Variant = "walkin"
)

var flowSteps = map[Variant][]Step{
	VariantPublic: {StepService, StepDateTime, StepDetails, StepAddOns, StepPayment, StepConfirmation},
	VariantMobile: {StepService, StepDateTime, StepAddOns, StepPayment, StepConfirmation},
	VariantPortal: {StepService, StepDateTime, StepAddOns, StepPayment, StepConfirmation},
	VariantWalkIn: {StepCustomer, StepServices, StepAssign, StepConfirm},
}

// Flow is the ordered step sequence of one app variant.
type Flow struct {
	Variant Variant
	Steps   []Step
}

// FlowFor returns the configured flow for a variant.
func FlowFor(v Variant) (Flow, error) {
	steps, ok := flowSteps[v]
	if !ok {
		return Flow{}, fmt.Errorf("booking: unknown flow variant %q", v)
	}
	return Flow{Variant: v, Steps: append([]Step(nil), steps...)}, nil
}

// MustFlow is FlowFor for the built-in variants.
func MustFlow(v Variant) Flow {
	f, err := FlowFor(v)
	if err != nil {
		panic(err)
	}
	return f
}

// Index returns the position of step in the flow, or -1.
func (f Flow) Index(step Step) int {
	for i, s := range f.Steps {
		if s == step {
			return i
		}
	}
	return -1
}

// Contains reports whether the flow has the step.
func (f Flow) Contains(step Step) bool {
	return f.Index(step) >= 0
}

// First returns the entry step.
func (f Flow) First() Step {
	if len(f.Steps) == 0 {
		return ""
	}
	return f.Steps[0]
}

// Next returns the step after step. ok is false at the last step or when
// step is not part of the flow.
func (f Flow) Next(step Step) (Step, bool) {
	i := f.Index(step)
	if i < 0 || i+1 >= len(f.Steps) {
		return "", false
	}
	return f.Steps[i+1], true
}

// Prev returns the step before step. ok is false at the first step or when
// step is not part of the flow.
func (f Flow) Prev(step Step) (Step, bool) {
	i := f.Index(step)
	if i <= 0 {
		return "", false
	}
	return f.Steps[i-1], true
}

// SubmitStep is the step whose completion is the booking submission.
func (f Flow) SubmitStep() Step {
	if f.Contains(StepConfirm) {
		return StepConfirm
	}
	return StepPayment
}

// NeedsSchedule reports whether the user picks date and time in this flow.
// Walk-ins are booked for the current time.
func (f Flow) NeedsSchedule() bool {
	return f.Contains(StepDateTime)
}
