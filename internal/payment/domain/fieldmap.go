package domain

import (
	"encoding/json"
	"fmt"
)

// Field maps translate gateway API parameter names into detail columns.
// Parameters missing from a map are still sent to the gateway but not stored.
var (
	gatewayDirectFields = map[string]string{
		"orderNumber":        "order_number",
		"amount":             "amount",
		"currency":           "currency",
		"returnUrl":          "return_url",
		"failUrl":            "fail_url",
		"description":        "description",
		"language":           "language",
		"clientId":           "client_id",
		"pageView":           "page_view",
		"jsonParams":         "json_params",
		"sessionTimeoutSecs": "session_timeout_secs",
		"expirationDate":     "expiration_date",
		"features":           "features",
	}

	walletFields = map[string]string{
		"orderNumber":          "order_number",
		"description":          "description",
		"language":             "language",
		"additionalParameters": "additional_parameters",
		"preAuth":              "pre_auth",
	}

	googlePayFields = map[string]string{
		"orderNumber":          "order_number",
		"description":          "description",
		"language":             "language",
		"additionalParameters": "additional_parameters",
		"preAuth":              "pre_auth",
		"clientId":             "client_id",
		"ip":                   "ip",
		"amount":               "amount",
		"currencyCode":         "currency_code",
		"email":                "email",
		"phone":                "phone",
		"returnUrl":            "return_url",
		"failUrl":              "fail_url",
	}
)

func fieldMap(system System) map[string]string {
	switch system {
	case SystemGatewayDirect:
		return gatewayDirectFields
	case SystemGooglePay:
		return googlePayFields
	case SystemApplePay, SystemSamsungPay:
		return walletFields
	default:
		return nil
	}
}

// MapFields returns the storable subset of params keyed by column name.
func MapFields(system System, params map[string]any) map[string]any {
	fields := fieldMap(system)
	out := make(map[string]any, len(fields))
	for apiName, column := range fields {
		if value, ok := params[apiName]; ok && value != nil {
			out[column] = value
		}
	}
	return out
}

// NewDetails builds the variant for system from gateway parameters.
func NewDetails(system System, params map[string]any) (Details, error) {
	details, err := EmptyDetails(system)
	if err != nil {
		return nil, err
	}

	columns := MapFields(system, params)
	for column, value := range columns {
		if column == "json_params" || column == "additional_parameters" {
			if raw, ok := value.(string); ok {
				columns[column] = json.RawMessage(raw)
			}
		}
	}

	payload, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("encode %s details: %w", system, err)
	}
	if err := json.Unmarshal(payload, details); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", system, err)
	}
	return details, nil
}

// DetailColumn reports whether column may be written on the system's details row.
func DetailColumn(system System, column string) bool {
	if system == SystemGatewayDirect && column == ColumnBankFormURL {
		return true
	}
	for _, mapped := range fieldMap(system) {
		if mapped == column {
			return true
		}
	}
	return false
}
