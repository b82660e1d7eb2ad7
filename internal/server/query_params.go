package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// minorUnitExponent converts major currency units to the gateway's minor units.
const minorUnitExponent = 2

var maxMinorUnits = decimal.NewFromInt(1 << 53)

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, errors.New("invalid_snowflake_id")
	}
	return &parsed, nil
}

func paymentIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return *id, nil
}

// minorUnits converts a major-unit amount such as 10.50 into 1050. Amounts
// with more precision than the minor unit are rejected.
func minorUnits(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(minorUnitExponent)
	if !shifted.IsInteger() {
		return 0, newValidationError("amount", "invalid_amount", "amount has too many decimal places")
	}
	if shifted.GreaterThan(maxMinorUnits) {
		return 0, newValidationError("amount", "invalid_amount", "amount is out of range")
	}
	return shifted.IntPart(), nil
}

func parsePageSize(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(trimmed)
	if err != nil || size < 0 {
		return 0, newValidationError("page_size", "invalid_page_size", "invalid page size")
	}
	return size, nil
}
