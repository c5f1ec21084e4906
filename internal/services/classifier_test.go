package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"register", "register", Command{Kind: CommandRegister}},
		{"register mixed case with spaces", "  I want to REGISTER please ", Command{Kind: CommandRegister}},
		{"sign up", "Sign Up", Command{Kind: CommandRegister}},
		{"register myanmar", "အကောင့်ဖွင့်မယ်", Command{Kind: CommandRegister}},
		{"speedtest", "speed test", Command{Kind: CommandSpeedTest}},
		{"speedtest myanmar", "အမြန်နှုန်းစစ်မယ်", Command{Kind: CommandSpeedTest}},
		{"pay", "pay", Command{Kind: CommandPayment}},
		{"bill", "my bill", Command{Kind: CommandPayment}},
		{"support", "I need help", Command{Kind: CommandSupport}},
		{"history", "show history", Command{Kind: CommandHistory}},
		{"history myanmar", "မှတ်တမ်း", Command{Kind: CommandHistory}},
		{"confirm", "confirm pay_1699999999", Command{Kind: CommandConfirmPayment, PaymentID: "pay_1699999999"}},
		{"confirm keeps id case", "CONFIRM Pay_ABC", Command{Kind: CommandConfirmPayment, PaymentID: "Pay_ABC"}},
		{"bare confirm", "confirm", Command{Kind: CommandUnknown}},
		{"unknown", "what are your office hours?", Command{Kind: CommandUnknown}},
		{"empty", "   ", Command{Kind: CommandUnknown}},
		{"first trigger wins", "register and pay", Command{Kind: CommandRegister}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Equal(t, CommandPayment, Classify("Payment").Kind)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "caf\u00e9", Normalize("CAFE\u0301"))
	assert.Equal(t, "မှတ်တမ်း", Normalize(" မှတ်တမ်း "))
}

func TestIsCancel(t *testing.T) {
	assert.True(t, IsCancel("Cancel"))
	assert.True(t, IsCancel(" stop "))
	assert.True(t, IsCancel("ပယ်ဖျက်မယ်"))
	assert.False(t, IsCancel("cancel my subscription"))
}
