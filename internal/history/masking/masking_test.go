package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("1234"))
	assert.Equal(t, "****3456", MaskSecret("123456"))
	assert.Equal(t, "pay_****wxyz", MaskSecret("pay_abcdwxyz"))
}

func TestMaskSensitive(t *testing.T) {
	masked := MaskSensitive(map[string]any{
		"otp":    "482913",
		"amount": 500,
		"gateway": map[string]any{
			"razorpay_signature": "deadbeefcafe",
			"order_id":           "order_123",
		},
		"attempts": 3,
	})

	assert.Equal(t, "****2913", masked["otp"])
	assert.Equal(t, 500, masked["amount"])
	gateway := masked["gateway"].(map[string]any)
	assert.Equal(t, "****cafe", gateway["razorpay_signature"])
	assert.Equal(t, "order_123", gateway["order_id"])
	assert.Nil(t, MaskSensitive(nil))
}
