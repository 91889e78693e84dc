package booking

import "github.com/wizardoma/radiance-wellness/internal/catalog"

// CanAdvance reports whether the draft satisfies the gate of step.
// submitted tells the gate whether a confirmation exists; the submit step
// is only complete once the booking went through.
func CanAdvance(step Step, d Draft, cat *catalog.Catalog, submitted bool) bool {
	return gateError(step, d, cat, submitted) == nil
}

func gateError(step Step, d Draft, cat *catalog.Catalog, submitted bool) *ValidationError {
	switch step {
	case StepService, StepServices:
		if d.ServiceID == "" {
			return &ValidationError{Step: step, Field: "service", Reason: "no service selected"}
		}
		if d.Duration == 0 {
			return &ValidationError{Step: step, Field: "duration", Reason: "no duration selected"}
		}
		svc, ok := cat.Service(d.ServiceID)
		if !ok {
			return &ValidationError{Step: step, Field: "service", Reason: "service not in catalog"}
		}
		if !svc.OffersDuration(d.Duration) {
			return &ValidationError{Step: step, Field: "duration", Reason: "duration not offered for this service"}
		}
		return nil
	case StepDateTime:
		if d.Date == "" {
			return &ValidationError{Step: step, Field: "date", Reason: "no date selected"}
		}
		if d.Time == "" {
			return &ValidationError{Step: step, Field: "time", Reason: "no time selected"}
		}
		return nil
	case StepDetails:
		switch {
		case d.Contact.Name == "":
			return &ValidationError{Step: step, Field: "name", Reason: "name is required"}
		case d.Contact.Email == "":
			return &ValidationError{Step: step, Field: "email", Reason: "email is required"}
		case d.Contact.Phone == "":
			return &ValidationError{Step: step, Field: "phone", Reason: "phone is required"}
		}
		return nil
	case StepCustomer:
		switch {
		case d.Contact.Name == "":
			return &ValidationError{Step: step, Field: "name", Reason: "name is required"}
		case d.Contact.Phone == "":
			return &ValidationError{Step: step, Field: "phone", Reason: "phone is required"}
		}
		return nil
	case StepAddOns:
		return nil
	case StepAssign:
		if d.StaffID == "" {
			return &ValidationError{Step: step, Field: "staff", Reason: "no staff member assigned"}
		}
		return nil
	case StepPayment, StepConfirm:
		if !submitted {
			return &ValidationError{Step: step, Reason: "booking not submitted"}
		}
		return nil
	case StepConfirmation:
		return &ValidationError{Step: step, Reason: "final step"}
	default:
		return &ValidationError{Step: step, Reason: "unknown step"}
	}
}

// Reachable reports whether every step before step passes its gate.
func (f Flow) Reachable(step Step, d Draft, cat *catalog.Catalog, submitted bool) bool {
	i := f.Index(step)
	if i < 0 {
		return false
	}
	for _, prior := range f.Steps[:i] {
		if !CanAdvance(prior, d, cat, submitted) {
			return false
		}
	}
	return true
}

// Validate checks the draft is ready to submit: every step before the
// submit step passes, and selected add-ons that still exist in the catalog
// are compatible with the service.
func (f Flow) Validate(d Draft, cat *catalog.Catalog) error {
	submit := f.SubmitStep()
	for _, step := range f.Steps {
		if step == submit {
			break
		}
		if verr := gateError(step, d, cat, false); verr != nil {
			return verr
		}
	}
	if d.Guests < 1 || d.Guests > d.MaxGuests() {
		return &ValidationError{Step: f.First(), Field: "guests", Reason: "guest count out of range"}
	}
	svc, _ := cat.Service(d.ServiceID)
	for _, id := range d.AddOnIDs {
		if _, known := cat.AddOn(id); known && !svc.SupportsAddOn(id) {
			return &ValidationError{Step: StepAddOns, Field: "addon", Reason: "add-on " + id + " not available for this service"}
		}
	}
	return nil
}
