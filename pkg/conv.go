package pkg

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"
)

func Int64ToBytes(num int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(num))
	return b
}

func BytesToInt64(bytes []byte) int64 {
	return int64(binary.BigEndian.Uint64(bytes))
}

// DecimalToBytes 金额按原始精度存储
func DecimalToBytes(d decimal.Decimal) []byte {
	return []byte(d.String())
}

// FormatAmount renders d with 8 decimals, or exactly when 8 would round it.
func FormatAmount(d decimal.Decimal) string {
	if d.Exponent() < -8 && !d.Equal(d.Round(8)) {
		return d.String()
	}
	return d.StringFixed(8)
}

func BytesToDecimal(b []byte) (decimal.Decimal, error) {
	if len(b) == 0 {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", b, err)
	}
	return d, nil
}
