package models

// Institution is the reference an Alert or CampaignLog carries; the directory owns the rest.
type Institution struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Name     string `json:"name" yaml:"name"`
	District string `json:"district" yaml:"district"`
	State    string `json:"state" yaml:"state"`
}

// RecipientCounts holds per-category contact counts for one institution.
type RecipientCounts struct {
	Students  int `json:"students" yaml:"students"`
	Parents   int `json:"parents" yaml:"parents"`
	Staff     int `json:"staff" yaml:"staff"`
	Emergency int `json:"emergency" yaml:"emergency"`
}

func (c RecipientCounts) Total() int {
	return c.Students + c.Parents + c.Staff + c.Emergency
}

// RecipientSelection selects which contact categories of an institution are targeted.
type RecipientSelection struct {
	Students  bool `json:"students"`
	Parents   bool `json:"parents"`
	Staff     bool `json:"staff"`
	Emergency bool `json:"emergency"`
}

func SelectAll() RecipientSelection {
	return RecipientSelection{Students: true, Parents: true, Staff: true, Emergency: true}
}

// SelectRoutine targets everyone except the emergency contacts.
func SelectRoutine() RecipientSelection {
	return RecipientSelection{Students: true, Parents: true, Staff: true}
}

func (s RecipientSelection) Empty() bool {
	return !s.Students && !s.Parents && !s.Staff && !s.Emergency
}

// Mask zeroes the categories the selection excludes.
func (s RecipientSelection) Mask(c RecipientCounts) RecipientCounts {
	var out RecipientCounts
	if s.Students {
		out.Students = c.Students
	}
	if s.Parents {
		out.Parents = c.Parents
	}
	if s.Staff {
		out.Staff = c.Staff
	}
	if s.Emergency {
		out.Emergency = c.Emergency
	}
	return out
}
