package domain

import (
	"bytes"
	"encoding/json"
)

// Legacy order status values written before the boolean pair existed.
const (
	LegacyStatusDelivered = "Entregue"
	LegacyStatusPaid      = "Pago"
	LegacyStatusPending   = "Pendente"
)

type OrderStatus struct {
	Delivered bool `json:"delivered"`
	Paid      bool `json:"paid"`
}

func (s OrderStatus) Completed() bool {
	return s.Delivered && s.Paid
}

// NormalizeLegacyStatus maps the old single-string status onto the pair.
// Unknown values mean neither delivered nor paid.
func NormalizeLegacyStatus(value string) OrderStatus {
	switch value {
	case LegacyStatusDelivered:
		return OrderStatus{Delivered: true}
	case LegacyStatusPaid:
		return OrderStatus{Paid: true}
	default:
		return OrderStatus{}
	}
}

// UnmarshalJSON accepts both the current object form and the legacy string.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = OrderStatus{}
		return nil
	}
	if trimmed[0] == '"' {
		var legacy string
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return err
		}
		*s = NormalizeLegacyStatus(legacy)
		return nil
	}
	type plain OrderStatus
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		// Anything else unreadable is treated like a pending legacy value.
		*s = OrderStatus{}
		return nil
	}
	*s = OrderStatus(decoded)
	return nil
}

// NeedsStatusMigration reports whether a stored order record still carries
// a missing or non-object status field.
func NeedsStatusMigration(record json.RawMessage) bool {
	var probe struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(record, &probe); err != nil {
		return false
	}
	trimmed := bytes.TrimSpace(probe.Status)
	return len(trimmed) == 0 || trimmed[0] != '{'
}
