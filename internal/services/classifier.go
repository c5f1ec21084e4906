package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// CommandKind is the closed set of intents recognised in free text
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandRegister
	CommandSpeedTest
	CommandPayment
	CommandSupport
	CommandHistory
	CommandConfirmPayment
)

func (k CommandKind) String() string {
	switch k {
	case CommandRegister:
		return "register"
	case CommandSpeedTest:
		return "speedtest"
	case CommandPayment:
		return "payment"
	case CommandSupport:
		return "support"
	case CommandHistory:
		return "history"
	case CommandConfirmPayment:
		return "confirm_payment"
	}
	return "unknown"
}

// Command is the classified intent of one message
type Command struct {
	Kind      CommandKind
	PaymentID string // set only for CommandConfirmPayment
}

// confirmPrefix introduces a payment confirmation, e.g. "confirm pay_1699999999"
const confirmPrefix = "confirm "

// commandTriggers is evaluated top to bottom; the first match wins.
var commandTriggers = []struct {
	kind    CommandKind
	phrases []string
}{
	{CommandRegister, []string{"register", "signup", "sign up", "အကောင့်ဖွင့်မယ်"}},
	{CommandSpeedTest, []string{"speedtest", "speed test", "အမြန်နှုန်းစစ်မယ်"}},
	{CommandPayment, []string{"pay", "payment", "bill", "ငွေပေးချေမယ်"}},
	{CommandSupport, []string{"help", "support", "chat", "အကူညီလိုချင်တယ်"}},
	{CommandHistory, []string{"history", "record", "မှတ်တမ်း"}},
}

// cancelWords abandon whatever workflow currently owns the conversation
var cancelWords = map[string]bool{
	"cancel":       true,
	"stop":         true,
	"quit":         true,
	"ပယ်ဖျက်မယ်": true,
}

// Normalize trims, composes and lower-cases text. Scripts without case
// (Myanmar, Thai, CJK) pass through unchanged apart from NFC composition.
func Normalize(raw string) string {
	s := norm.NFC.String(strings.TrimSpace(raw))
	return cases.Lower(language.Und).String(s)
}

// Classify maps free text to a Command. It is pure and performs no I/O.
func Classify(raw string) Command {
	text := Normalize(raw)
	if text == "" {
		return Command{Kind: CommandUnknown}
	}

	// The payment id contains the "pay" trigger, so the prefix goes first.
	if strings.HasPrefix(text, confirmPrefix) {
		fields := strings.Fields(strings.TrimSpace(raw))
		if len(fields) >= 2 {
			return Command{Kind: CommandConfirmPayment, PaymentID: fields[1]}
		}
	}

	for _, trigger := range commandTriggers {
		for _, phrase := range trigger.phrases {
			if strings.Contains(text, phrase) {
				return Command{Kind: trigger.kind}
			}
		}
	}
	return Command{Kind: CommandUnknown}
}

// IsCancel reports whether the message asks to abandon the current workflow
func IsCancel(raw string) bool {
	return cancelWords[Normalize(raw)]
}
