package hotkey

import (
	"testing"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		// Modifier keys
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"cmd", []uint16{91, 92}},
		{"super", []uint16{91, 92}},

		// Letter keys
		{"a", []uint16{65}},
		{"s", []uint16{83}},
		{"z", []uint16{90}},

		// Number keys
		{"0", []uint16{48}},
		{"9", []uint16{57}},

		// Function keys
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},

		// Special keys
		{"space", []uint16{32}},
		{"esc", []uint16{27}},
		{"printscreen", []uint16{44}},

		// Unknown keys
		{"unknown", nil},
		{"f25", nil},
		{"f01", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := keyNameToRawcodes(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Errorf("keyNameToRawcodes(%q) returned %d rawcodes, expected %d",
					tt.keyName, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("keyNameToRawcodes(%q)[%d] = %d, expected %d",
						tt.keyName, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Shift+S", []string{"ctrl", "shift", "s"}},
		{"Control+Alt+F4", []string{"ctrl", "alt", "f4"}},
		{"Win+Shift+S", []string{"cmd", "shift", "s"}},
		{"Super + PrintScreen", []string{"cmd", "printscreen"}},
		{"Ctrl++S", []string{"ctrl", "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseHotkey(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("parseHotkey(%q) = %v, expected %v", tt.input, result, tt.expected)
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseHotkey(%q)[%d] = %q, expected %q",
						tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestComboFiresOncePerChord(t *testing.T) {
	c, err := newCombo("Ctrl+Shift+S")
	if err != nil {
		t.Fatalf("newCombo: %v", err)
	}

	if c.press(162) || c.press(160) {
		t.Fatal("partial chord fired")
	}
	if !c.press(83) {
		t.Fatal("full chord did not fire")
	}
	// Auto-repeat of S while modifiers stay down must not fire again.
	if c.press(83) {
		t.Fatal("chord fired twice without re-pressing modifiers")
	}

	// Right-hand modifiers count too.
	c.release(162)
	c.release(160)
	c.release(83)
	c.press(163)
	c.press(161)
	if !c.press(83) {
		t.Fatal("chord with right-hand modifiers did not fire")
	}
}

func TestComboReleaseResets(t *testing.T) {
	c, err := newCombo("Alt+F4")
	if err != nil {
		t.Fatalf("newCombo: %v", err)
	}
	c.press(164)
	c.release(164)
	if c.press(115) {
		t.Fatal("released modifier still counted")
	}
	if c.press(999) {
		t.Fatal("unrelated key fired")
	}
}

func TestNewComboRejectsUnknownKeys(t *testing.T) {
	if _, err := newCombo("Hyper+Meta"); err == nil {
		t.Fatal("expected error for combination without valid keys")
	}
}
