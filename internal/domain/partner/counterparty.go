package partner

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/shared"
)

// AliasList is the set of free-text names bound to a counterparty, stored as JSONB
type AliasList []string

// Value implements driver.Valuer interface for GORM to store as JSONB
func (a AliasList) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (a *AliasList) Scan(value interface{}) error {
	if value == nil {
		*a = AliasList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan AliasList: unsupported type")
	}

	if len(bytes) == 0 {
		*a = AliasList{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Contains reports whether the list holds the given alias (exact match after trimming)
func (a AliasList) Contains(alias string) bool {
	alias = strings.TrimSpace(alias)
	for _, existing := range a {
		if existing == alias {
			return true
		}
	}
	return false
}

// Counterparty represents a canonical trading partner aggregate root.
// Incoming free-text names from ingestion resolve to exactly one counterparty
// through its alias list.
type Counterparty struct {
	shared.TenantAggregateRoot
	Name    string    `json:"name"`
	Aliases AliasList `json:"aliases" gorm:"type:jsonb"`
	Remark  string    `json:"remark"`
}

// NewCounterparty creates a new counterparty
func NewCounterparty(tenantID uuid.UUID, name string) (*Counterparty, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Counterparty name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Counterparty name cannot exceed 200 characters")
	}

	cp := &Counterparty{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Aliases:             AliasList{},
	}

	cp.AddDomainEvent(NewCounterpartyCreatedEvent(cp))

	return cp, nil
}

// AddAlias registers a free-text name for future automatic resolution.
// Adding an alias that is already registered is a no-op, so the operation
// is safe to repeat.
func (cp *Counterparty) AddAlias(alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return shared.NewDomainError(shared.CodeValidation, "Alias cannot be empty")
	}
	if len(alias) > 200 {
		return shared.NewDomainError(shared.CodeValidation, "Alias cannot exceed 200 characters")
	}
	if cp.Aliases.Contains(alias) {
		return nil
	}

	cp.Aliases = append(cp.Aliases, alias)
	cp.UpdatedAt = time.Now()
	cp.IncrementVersion()

	cp.AddDomainEvent(NewCounterpartyAliasAddedEvent(cp, alias))

	return nil
}

// MatchesName reports whether the given free-text name resolves to this
// counterparty, either as the canonical name or a registered alias.
func (cp *Counterparty) MatchesName(name string) bool {
	name = strings.TrimSpace(name)
	return cp.Name == name || cp.Aliases.Contains(name)
}

// SetRemark sets the remark
func (cp *Counterparty) SetRemark(remark string) {
	cp.Remark = remark
	cp.UpdatedAt = time.Now()
	cp.IncrementVersion()
}

// Rename changes the canonical name, keeping the old name as an alias so that
// historical free-text references still resolve.
func (cp *Counterparty) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError(shared.CodeValidation, "Counterparty name cannot be empty")
	}
	if name == cp.Name {
		return nil
	}

	old := cp.Name
	cp.Name = name
	if !cp.Aliases.Contains(old) {
		cp.Aliases = append(cp.Aliases, old)
	}
	cp.UpdatedAt = time.Now()
	cp.IncrementVersion()

	return nil
}

// String implements fmt.Stringer for log output
func (cp *Counterparty) String() string {
	return fmt.Sprintf("Counterparty(%s, %q, %d aliases)", cp.ID, cp.Name, len(cp.Aliases))
}
