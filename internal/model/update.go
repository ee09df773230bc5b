package model

// UpdateSet names the annotation fields an update may change. A nil field
// is left untouched. Only annotation fields are updatable; the statement
// source fields are immutable once extracted.
type UpdateSet struct {
	Description    *string   `json:"description,omitempty"`
	Category       *Category `json:"category,omitempty"`
	OriginatorName *string   `json:"originator_name,omitempty"`
	GroupName      *string   `json:"group_name,omitempty"`
	IsTaxes        *bool     `json:"is_taxes,omitempty"`
}

// Empty reports whether the set changes nothing.
func (u UpdateSet) Empty() bool {
	return u.Description == nil &&
		u.Category == nil &&
		u.OriginatorName == nil &&
		u.GroupName == nil &&
		u.IsTaxes == nil
}

// Validate checks the category value, when one is supplied.
func (u UpdateSet) Validate() error {
	if u.Category == nil {
		return nil
	}
	_, err := ParseCategory(string(*u.Category))
	return err
}
