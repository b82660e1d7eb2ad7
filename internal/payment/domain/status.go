package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusNew        Status = "NEW"
	StatusRegistered Status = "REGISTERED"
	StatusHeld       Status = "HELD"
	StatusDeposited  Status = "DEPOSITED"
	StatusReversed   Status = "REVERSED"
	StatusRefunded   Status = "REFUNDED"
	StatusACSAuth    Status = "ACS_AUTH"
	StatusDeclined   Status = "DECLINED"
	StatusError      Status = "ERROR"
)

var allStatuses = []Status{
	StatusNew,
	StatusRegistered,
	StatusHeld,
	StatusDeposited,
	StatusReversed,
	StatusRefunded,
	StatusACSAuth,
	StatusDeclined,
	StatusError,
}

// ReconcilableStatuses is the default scope of a status reconciliation run.
var ReconcilableStatuses = []Status{
	StatusNew,
	StatusRegistered,
	StatusHeld,
	StatusACSAuth,
}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the bank will not move the payment any further.
// ERROR is not terminal: a later status query may revise it.
func (s Status) Terminal() bool {
	switch s {
	case StatusDeposited, StatusReversed, StatusRefunded, StatusDeclined:
		return true
	default:
		return false
	}
}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// ParseStatuses parses a list of status names, dropping duplicates.
func ParseStatuses(raw []string) ([]Status, error) {
	out := make([]Status, 0, len(raw))
	seen := map[Status]struct{}{}
	for _, item := range raw {
		status, err := ParseStatus(item)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		out = append(out, status)
	}
	return out, nil
}

// StatusCatalog maps bank orderStatus codes onto local statuses.
type StatusCatalog struct {
	byCode map[int]Status
}

var defaultStatusCodes = map[int]Status{
	0: StatusRegistered,
	1: StatusHeld,
	2: StatusDeposited,
	3: StatusReversed,
	4: StatusRefunded,
	5: StatusACSAuth,
	6: StatusDeclined,
}

func DefaultStatusCatalog() StatusCatalog {
	byCode := make(map[int]Status, len(defaultStatusCodes))
	for code, status := range defaultStatusCodes {
		byCode[code] = status
	}
	return StatusCatalog{byCode: byCode}
}

// NewStatusCatalog returns the default catalog with overrides applied.
// On an override naming an unknown local status the default catalog is
// returned together with the error.
func NewStatusCatalog(overrides map[int]string) (StatusCatalog, error) {
	catalog := DefaultStatusCatalog()
	for code, raw := range overrides {
		status, err := ParseStatus(raw)
		if err != nil {
			return DefaultStatusCatalog(), fmt.Errorf("status catalog code %d: %w", code, err)
		}
		catalog.byCode[code] = status
	}
	return catalog, nil
}

func (c StatusCatalog) Lookup(code int) (Status, bool) {
	status, ok := c.byCode[code]
	return status, ok
}
