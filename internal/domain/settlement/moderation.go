package settlement

// ModerationState is an externally managed override on vouchers and cash
// transactions. Any state other than NONE blocks allocation mutation.
type ModerationState string

const (
	ModerationNone      ModerationState = "NONE"
	ModerationOnHold    ModerationState = "ON_HOLD"
	ModerationHidden    ModerationState = "HIDDEN"
	ModerationCancelled ModerationState = "CANCELLED"
)

// IsValid checks if the moderation state is valid
func (m ModerationState) IsValid() bool {
	switch m {
	case ModerationNone, ModerationOnHold, ModerationHidden, ModerationCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (m ModerationState) String() string {
	return string(m)
}

// BlocksMutation returns true if the state forbids allocation changes
func (m ModerationState) BlocksMutation() bool {
	return m != ModerationNone && m != ""
}
