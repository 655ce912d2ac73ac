package sap

// Validate lists what keeps r from being accepted by SAP. An empty result
// means the record can be sent.
func Validate(r Record) []string {
	var errs []string
	if r.Key() == "" {
		errs = append(errs, "id is required")
	}
	return append(errs, r.problems()...)
}

func (r GroupRecord) problems() []string {
	var errs []string
	if r.Name == "" {
		errs = append(errs, "name is required")
	}
	if r.LocationCenter == "" {
		errs = append(errs, "location center is required")
	}
	if r.Phase == "" {
		errs = append(errs, "phase is required")
	}
	return errs
}

func (r StrategyRecord) problems() []string {
	var errs []string
	if r.Name == "" {
		errs = append(errs, "name is required")
	}
	if r.GroupID == "" {
		errs = append(errs, "group id is required")
	}
	if r.Frequency == nil {
		errs = append(errs, "frequency is required")
	}
	if r.Duration == nil {
		errs = append(errs, "duration is required")
	}
	return errs
}

func (r StopRecord) problems() []string {
	var errs []string
	if r.GroupID == "" {
		errs = append(errs, "group id is required")
	}
	if r.StartDate.IsZero() {
		errs = append(errs, "start date is required")
	}
	if r.EndDate.IsZero() {
		errs = append(errs, "end date is required")
	}
	return errs
}
